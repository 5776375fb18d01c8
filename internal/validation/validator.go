package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(jsonFieldName)

	// an explicit id must agree with the status id in the URL, if the URL has one
	v.RegisterStructValidation(createTweetStructValidation, CreateTweetRequest{})

	return v
}

func createTweetStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateTweetRequest)
	if req.ID == "" {
		return
	}
	if fromURL, ok := tweets.IDFromURL(req.URL); ok && fromURL != req.ID {
		sl.ReportError(req.ID, "id", "ID", "id_matches_url", fmt.Sprintf("url status id %s != id %s", fromURL, req.ID))
	}
}
