package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/schema"
	"github.com/syntrixbase/daybook/internal/bucket"
)

// queryDecoder decodes query strings into the *Query structs.
var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// listQuery are the parameters of an entity list.
type listQuery struct {
	// Filter is a CEL boolean expression over item.
	Filter  string `schema:"filter" json:"filter" validate:"max=1024"`
	Refresh bool   `schema:"refresh" json:"refresh"`
	// From and To bound calendar events, RFC 3339 or plain dates.
	From string `schema:"from" json:"from"`
	To   string `schema:"to" json:"to"`
}

// pageQuery are the parameters of a chat feed read.
type pageQuery struct {
	Cursor string `schema:"cursor" json:"cursor" validate:"max=128"`
	More   bool   `schema:"more" json:"more"`
}

type contentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type confirmRequest struct {
	Confirm *bool `json:"confirm" validate:"required"`
}

// decodeQuery fills dst from the query string and validates it.
func decodeQuery(dst interface{}, values url.Values) error {
	if err := queryDecoder.Decode(dst, values); err != nil {
		return fmt.Errorf("%w: invalid query parameters: %v", errBadRequest, err)
	}
	return bucket.ValidateStruct("query", dst)
}

// decodeBody decodes a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := readJSON(r, dst); err != nil {
		return err
	}
	return bucket.ValidateStruct("request", dst)
}

func readJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body required", errBadRequest)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errTooLarge
		}
		return fmt.Errorf("%w: failed to read request body: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}
