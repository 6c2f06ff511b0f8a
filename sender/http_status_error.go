package sender

import (
	"errors"
	"fmt"
)

type httpStatusError struct {
	op         string
	statusCode int
	body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body %s", e.op, e.statusCode, e.body)
}

// StatusCode 非 2xx 响应的状态码，其他错误返回 0
func StatusCode(err error) int {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.statusCode
	}
	return 0
}
