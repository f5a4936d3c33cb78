package catalog

import "errors"

var ErrItemNotFound = errors.New("sellable item not found")
