package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRequest covers every framing defect in an enrollment
	// request body. The wrapped variants below keep "bad base64" apart
	// from "bad DER" for diagnostics.
	ErrMalformedRequest error = errors.New("malformed request")

	ErrInvalidBase64       error = fmt.Errorf("%w: body is not valid base64", ErrMalformedRequest)
	ErrInvalidDER          error = fmt.Errorf("%w: body is not a valid PKCS#10 structure", ErrMalformedRequest)
	ErrInvalidCSRSignature error = fmt.Errorf("%w: CSR signature verification failed", ErrMalformedRequest)
	ErrMissingCommonName   error = fmt.Errorf("%w: CSR subject has no Common Name", ErrMalformedRequest)

	ErrUnauthenticated   error = errors.New("unauthenticated")
	ErrIdentityMismatch  error = errors.New("certificate identity does not match requested identity")
	ErrDuplicateIdentity error = errors.New("device identity already enrolled")
	ErrRecordNotFound    error = errors.New("enrollment record not found")

	// ErrKeyUnavailable means the signing authority's key or certificate
	// is not loaded. The process refuses to serve in this state.
	ErrKeyUnavailable error = errors.New("CA signing material unavailable")
)
