package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sign computes the X-Twilio-Signature for a form POST.
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateTwilioSignature(t *testing.T) {
	const token = "secret-token"
	const public = "https://hooks.example.com"

	app := fiber.New()
	app.Post("/webhook/whatsapp", ValidateTwilioSignature(token, public), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	form := url.Values{"From": {"whatsapp:+15550100"}, "Body": {"hello"}, "NumMedia": {"0"}}
	do := func(sig string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
		if sig != "" {
			req.Header.Set("X-Twilio-Signature", sig)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do(sign(token, public+"/webhook/whatsapp", form)))
	assert.Equal(t, fiber.StatusUnauthorized, do(sign("wrong", public+"/webhook/whatsapp", form)))
	assert.Equal(t, fiber.StatusUnauthorized, do(""))
}

func TestValidateTwilioSignature_MissingToken(t *testing.T) {
	app := fiber.New()
	app.Post("/hook", ValidateTwilioSignature("", ""), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	req := httptest.NewRequest(fiber.MethodPost, "/hook", strings.NewReader("a=b"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set("X-Twilio-Signature", "abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
