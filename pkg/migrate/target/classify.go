package target

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
)

// classifyCommon : faults every driver shares. connection level trouble is Transient, a value
// the driver could not encode is Permanent, everything else is left to the engine
func classifyCommon(err error) (errs.Kind, bool) {
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, context.Canceled):
		return errs.Canceled, true
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Transient, true
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return errs.Transient, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.Transient, true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "failed to encode") || strings.Contains(msg, "unable to encode") || strings.Contains(msg, "converting argument") {
		return errs.Permanent, true
	}
	return "", false
}

// sqlStateKind : ANSI SQLSTATE classes shared by postgres and snowflake
func sqlStateKind(state string) errs.Kind {
	if len(state) < 2 {
		return errs.Unknown
	}
	switch state[:2] {
	case "22", "23":
		// data exception, integrity constraint violation
		return errs.Permanent
	case "08", "53":
		// connection exception, insufficient resources
		return errs.Transient
	case "40":
		// serialization failure, deadlock
		return errs.Transient
	}
	switch state {
	case "57P01", "57P02", "57P03", "57014":
		// admin shutdown, crash shutdown, cannot connect now, query canceled
		return errs.Transient
	}
	return errs.Unknown
}
