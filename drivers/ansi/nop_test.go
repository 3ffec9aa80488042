package ansi

import (
	"database/sql/driver"
	"errors"
)

type nopDriver struct{}

func (nopDriver) Open(string) (driver.Conn, error) { return nil, errors.New("nop") }
