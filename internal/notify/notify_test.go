package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	data := map[string]string{
		"url":          "https://app.test/verify-email?token=abc",
		"expiry_hours": "72",
	}

	t.Run("VerifyEmail", func(t *testing.T) {
		msg, err := Render(TemplateVerifyEmail, data)
		require.NoError(t, err)
		assert.Equal(t, "Verify your email address", msg.Subject)
		assert.Contains(t, msg.Body, "https://app.test/verify-email?token=abc")
		assert.Contains(t, msg.Body, "72 hours")
	})

	t.Run("PasswordReset", func(t *testing.T) {
		msg, err := Render(TemplatePasswordReset, map[string]string{
			"url":          "https://app.test/reset-password?token=xyz",
			"expiry_hours": "24",
		})
		require.NoError(t, err)
		assert.Equal(t, "Reset your password", msg.Subject)
		assert.Contains(t, msg.Body, "https://app.test/reset-password?token=xyz")
		assert.Contains(t, msg.Body, "24 hours")
	})

	t.Run("UnknownTemplate", func(t *testing.T) {
		_, err := Render(Template("bogus"), nil)
		assert.Error(t, err)
	})
}

func TestLogDispatcher(t *testing.T) {
	d := &LogDispatcher{}
	err := d.Send(context.Background(), TemplateVerifyEmail, "dev@test.com", map[string]string{"url": "x"})
	assert.NoError(t, err)
}
