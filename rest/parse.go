package rest

import (
	"io"
	"net/http"
	"strconv"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
)

const maxUploadSize = 10 << 20

type upload struct {
	filename string
	data     []byte
}

// parseUpload reads the multipart "file" field of a request.
func parseUpload(r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return upload{}, badRequest(errors.Wrap(err, "problem parsing multipart form"))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, badRequest(errors.Wrap(err, "request must include a 'file' part"))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, badRequest(errors.Wrap(err, "problem reading uploaded file"))
	}

	return upload{filename: header.Filename, data: data}, nil
}

func parseBool(r *http.Request, key string) (bool, error) {
	val := r.FormValue(key)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, badRequest(errors.Errorf("invalid value '%s' for '%s'", val, key))
	}
	return b, nil
}

func parseSeed(r *http.Request) (int64, error) {
	val := r.FormValue("seed")
	if val == "" {
		return 0, nil
	}
	seed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, badRequest(errors.Errorf("invalid seed '%s'", val))
	}
	return seed, nil
}

func badRequest(err error) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
	}
}
