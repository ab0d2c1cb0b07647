package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var errEmptyBody = errors.New("request body is empty")

// BindNestedOrFlat binds the request body to obj. Admin clients send
// {"vehicle": {...}} while the mobile app sends the fields at the top level;
// both are accepted. The body stays readable afterwards and obj's binding
// tags are validated.
func BindNestedOrFlat(c *gin.Context, key string, obj any) error {
	if c.Request.Body == nil {
		return errEmptyBody
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return errEmptyBody
	}

	payload := raw
	var envelope map[string]json.RawMessage
	if json.Unmarshal(raw, &envelope) == nil {
		if inner, ok := envelope[key]; ok {
			payload = inner
		}
	}

	if err := json.Unmarshal(payload, obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}
