package connection

import "errors"

var ErrNotFound = errors.New("connection not found")
