package identityextractors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BasicCredentials struct {
	Username string
	Password string
}

// BasicAuthExtractor captures HTTP Basic credentials without verifying
// them. Verification belongs to the authentication gateway.
type BasicAuthExtractor struct {
	logger *logrus.Entry
}

func (extractor BasicAuthExtractor) ExtractAuthentication(ctx *gin.Context, req http.Request) {
	username, password, ok := req.BasicAuth()
	if !ok {
		extractor.logger.Trace("No basic auth credentials presented")
		return
	}

	extractor.logger.Tracef("Basic auth credentials presented for user '%s'", username)
	ctx.Set(string(IdentityExtractorBasicAuth), BasicCredentials{
		Username: username,
		Password: password,
	})
}
