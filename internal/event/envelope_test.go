package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SetsIdentityAndTopic(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	env, err := newAt(MerchantRegistered{UserID: 9, MerchantID: 3, MerchantName: "Bakery"}, now)

	require.NoError(t, err)
	assert.NotEmpty(t, env.MessageID())
	assert.Equal(t, int64(1_700_000_000_123), env.Timestamp())
	assert.Equal(t, TopicMerchantRegistered, env.Topic())
	assert.JSONEq(t, `{"userId":9,"merchantId":3,"merchantName":"Bakery","registeredAt":0}`, env.Data())
}

func TestNew_FreshMessageIDs(t *testing.T) {
	a, err := New(UserRegistered{UserID: 1})
	require.NoError(t, err)
	b, err := New(UserRegistered{UserID: 1})
	require.NoError(t, err)

	assert.NotEqual(t, a.MessageID(), b.MessageID())
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := New(MerchantProcessed{ApplicantID: 9, Status: MerchantApproved, OperatorID: 1})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Len(t, wire, 4)
	assert.Equal(t, env.MessageID(), wire["messageId"])
	assert.Equal(t, TopicMerchantProcessed, wire["topic"])
	assert.IsType(t, "", wire["data"])
}

func TestParse_DecodeRoundTrip(t *testing.T) {
	env, err := New(MerchantRegistered{UserID: 9, MerchantID: 3})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, env, parsed)

	var payload MerchantRegistered
	require.NoError(t, parsed.Decode(&payload))
	assert.Equal(t, int64(9), payload.UserID)
	assert.Equal(t, int64(3), payload.MerchantID)
}

func TestDecode_TopicMismatch(t *testing.T) {
	env, err := New(UserRegistered{UserID: 1})
	require.NoError(t, err)

	var payload MerchantRegistered
	err = env.Decode(&payload)

	assert.ErrorIs(t, err, ErrTopicMismatch)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"missing id", `{"topic":"user.registered","data":"{}"}`},
		{"missing topic", `{"messageId":"m-1","data":"{}"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}
