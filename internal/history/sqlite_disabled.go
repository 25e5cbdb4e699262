//go:build !sqlite
// +build !sqlite

package history

import (
	"errors"

	logx "tickd/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite history not built: build with -tags sqlite")
}
