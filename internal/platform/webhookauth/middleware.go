// Package webhookauth guards the sync trigger endpoints with a shared bearer secret.
package webhookauth

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// EnvKeyWebhookToken names the environment variable holding the shared secret.
const EnvKeyWebhookToken = "WEBHOOK_TOKEN"

const (
	msgMissingToken  = "Missing authorization token"
	msgInvalidFormat = "Invalid authorization header format"
	msgInvalidToken  = "Invalid token"
)

// Required returns a Gin middleware that only lets through requests carrying
// "Authorization: Bearer <token>" where token matches the shared secret.
// The secret is read from WEBHOOK_TOKEN on every request.
func Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Authorization ヘッダーを取得
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgMissingToken})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgInvalidFormat})
			return
		}
		if !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgInvalidToken})
			return
		}

		// 2. シークレットを環境変数から取得
		secret := os.Getenv(EnvKeyWebhookToken)
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
			return
		}

		// 3. トークンを検証
		if !Verify(secret, parts[1]) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgInvalidToken})
			return
		}
		c.Next()
	}
}

// Verify reports whether token is accepted for secret. Accepted forms are the
// secret itself, the plaintext of a bcrypt-hashed secret, and an unexpired
// HS256 trigger token signed with the secret.
func Verify(secret, token string) bool {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1 {
		return true
	}
	if isBcryptHash(secret) {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(token)) == nil
	}
	return verifyJWT(secret, token)
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func verifyJWT(secret, token string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		// HMAC 以外の署名方式は拒否
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
	)
	return err == nil && parsed.Valid
}
