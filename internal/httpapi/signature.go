package httpapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Twilio-Signature"

// RequireTwilioSignature validates the provider's HMAC-SHA1 request
// signature: base64(HMAC(authToken, fullURL + sorted(name+value...))).
// baseURL must match the public address the provider was given.
func RequireTwilioSignature(authToken, baseURL string, enforce bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enforce {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		sig := c.GetHeader(signatureHeader)
		url := baseURL + c.Request.URL.RequestURI()
		if sig == "" || !ValidSignature(authToken, url, c.Request.PostForm, sig) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// ValidSignature checks a provider request signature against the expected
// HMAC over the URL and the alphabetically sorted POST parameters.
func ValidSignature(authToken, url string, params map[string][]string, signature string) bool {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(url))
	for _, name := range names {
		for _, value := range params[name] {
			mac.Write([]byte(name))
			mac.Write([]byte(value))
		}
	}
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
