// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"fmt"

	"golang.org/x/xerrors"
)

// DMError 是多屏切换的结果码
type DMError int32

const (
	DMOk                      DMError = 0
	DMErrorInitDMSProxyFailed DMError = 100
	DMErrorIPCFailed          DMError = 101
	DMErrorRemoteCreateFailed DMError = 102
	DMErrorNullptr            DMError = 103
	DMErrorInvalidParam       DMError = 104
	DMErrorInvalidCalling     DMError = 113
	DMErrorTimeout            DMError = 115
	DMErrorUnknown            DMError = -1
)

func (e DMError) Error() string {
	switch e {
	case DMOk:
		return "ok"
	case DMErrorInitDMSProxyFailed:
		return "init proxy failed"
	case DMErrorIPCFailed:
		return "ipc failed"
	case DMErrorRemoteCreateFailed:
		return "remote create failed"
	case DMErrorNullptr:
		return "null pointer"
	case DMErrorInvalidParam:
		return "invalid param"
	case DMErrorInvalidCalling:
		return "invalid calling"
	case DMErrorTimeout:
		return "timeout"
	case DMErrorUnknown:
		return "unknown error"
	}
	return fmt.Sprintf("DMError(%d)", int32(e))
}

// Code 把错误转换为结果码，nil 为 DMOk
func Code(err error) DMError {
	if err == nil {
		return DMOk
	}
	var code DMError
	if xerrors.As(err, &code) {
		return code
	}
	return DMErrorUnknown
}
