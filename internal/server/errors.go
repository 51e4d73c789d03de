// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/googlegenomics/overlapper/internal/storage"
)

var (
	errAmbiguousAnchors = errors.New("both anchors and anchors_path given")
	errNotRemote        = errors.New("anchors_path must name a gs:// object")
	errBusy             = errors.New("request cancelled while waiting for a chainer")
)

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newAPIError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newPermissionDeniedError(context string, err error) error {
	return newAPIError("PermissionDenied", http.StatusForbidden, context, err)
}

func newUnsupportedFormatError(err error) error {
	return &apiError{"UnsupportedFormat", http.StatusBadRequest, err}
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

func newUnavailableError(err error) error {
	return &apiError{"Unavailable", http.StatusServiceUnavailable, err}
}

// newStorageError classifies a failure to open or read a stored input.
func newStorageError(context string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return newNotFoundError(context, err)
	case errors.Is(err, storage.ErrPermissionDenied):
		return newPermissionDeniedError(context, err)
	case errors.Is(err, storage.ErrInvalidAuthentication):
		return newInvalidAuthenticationError(context, err)
	}
	return fmt.Errorf("%s: %v", context, err)
}

// writeError writes either a JSON object or bare HTTP error describing err.
// A JSON object is written only when the error has a name and code defined
// by the API.
func writeError(c *gin.Context, err error) {
	if err, ok := err.(*apiError); ok {
		c.JSON(err.code, gin.H{
			"error":   err.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
		})
		return
	}
	code := http.StatusInternalServerError
	c.String(code, "%s: %v", http.StatusText(code), err)
}
