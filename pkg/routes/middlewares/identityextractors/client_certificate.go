package identityextractors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ClientCertificateExtractor struct {
	logger *logrus.Entry
}

func (extractor ClientCertificateExtractor) ExtractAuthentication(ctx *gin.Context, req http.Request) {
	if req.TLS == nil || len(req.TLS.PeerCertificates) == 0 {
		extractor.logger.Trace("No certificate presented in peer connection")
		return
	}

	extractor.logger.Trace("Using certificate presented in peer connection")
	ctx.Set(string(IdentityExtractorClientCertificate), req.TLS.PeerCertificates[0])
}
