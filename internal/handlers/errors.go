package handlers

import (
	"errors"
	"net/http"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

// httpStatusCode maps store errors onto response codes.
func httpStatusCode(err error) int {
	switch {
	case errors.Is(err, tweets.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, tweets.ErrRecordExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, tweets.ErrRecordNotFound):
		return "tweet_not_found"
	case errors.Is(err, tweets.ErrRecordExists):
		return "tweet_exists"
	default:
		return "internal_error"
	}
}
