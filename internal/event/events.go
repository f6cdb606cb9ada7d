package event

const (
	TopicMerchantRegistered = "merchant.registered"
	TopicMerchantProcessed  = "merchant.processed"
	TopicUserRegistered     = "user.registered"
)

// Merchant review outcomes carried by MerchantProcessed.
const (
	MerchantApproved = "approved"
	MerchantRejected = "rejected"
)

type MerchantRegistered struct {
	UserID       int64  `json:"userId"`
	MerchantID   int64  `json:"merchantId"`
	MerchantName string `json:"merchantName"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	LicenseURL   string `json:"licenseUrl,omitempty"`
	RegisteredAt int64  `json:"registeredAt"`
}

func (MerchantRegistered) Topic() string { return TopicMerchantRegistered }

type MerchantProcessed struct {
	ApplicantID int64  `json:"applicantId"`
	MerchantID  int64  `json:"merchantId"`
	Status      string `json:"status"`
	OperatorID  int64  `json:"operatorId"`
	Reason      string `json:"reason,omitempty"`
	ProcessedAt int64  `json:"processedAt"`
}

func (MerchantProcessed) Topic() string { return TopicMerchantProcessed }

type UserRegistered struct {
	UserID          int64  `json:"userId"`
	Email           string `json:"email"`
	Nickname        string `json:"nickname"`
	ActivationToken string `json:"activationToken"`
}

func (UserRegistered) Topic() string { return TopicUserRegistered }
