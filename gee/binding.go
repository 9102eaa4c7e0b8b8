package gee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes 请求体上限，批量转换 50 条链接远小于这个值
const MaxBodyBytes = 1 << 20

var (
	ErrEmptyBody     = errors.New("empty body")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrTrailingValue = errors.New("body must contain only one JSON value")
)

// ShouldBindJSON 严格解析：拒绝未知字段和多余的 JSON 值
func (c *Context) ShouldBindJSON(dst any) error {
	body := http.MaxBytesReader(c.Writer, c.Req.Body, MaxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return bindError(err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if errors.Is(bindError(err), ErrBodyTooLarge) {
			return ErrBodyTooLarge
		}
		return ErrTrailingValue
	}
	return nil
}

func bindError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return ErrBodyTooLarge
	case errors.Is(err, io.EOF):
		return ErrEmptyBody
	}
	return err
}

// BindJSON 失败时直接写 400（过大为 413）
func (c *Context) BindJSON(dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			c.AbortWithError(http.StatusRequestEntityTooLarge, err.Error())
			return err
		}
		c.AbortWithError(http.StatusBadRequest, "Invalid json")
		return err
	}
	return nil
}
