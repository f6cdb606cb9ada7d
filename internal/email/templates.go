package email

import (
	"fmt"
	"html"
)

// BuildActivationBody builds the HTML body of the activation email.
func BuildActivationBody(nickname, link string) string {
	name := nickname
	if name == "" {
		name = "there"
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #2f855a; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Welcome to Surprise Bag</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hi %s,</p>
		<p>Confirm your email address to start rescuing food from local shops.</p>

		<p style="text-align: center; margin: 30px 0;">
			<a href="%s" style="background: #2f855a; color: white; padding: 12px 24px; border-radius: 5px; text-decoration: none; font-weight: 600;">Activate account</a>
		</p>

		<p style="font-size: 14px; color: #666;">If the button does not work, paste this link into your browser:<br>%s</p>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			You received this email because an account was created with this address.
		</p>
	</div>
</body>
</html>`, html.EscapeString(name), html.EscapeString(link), html.EscapeString(link))
}
