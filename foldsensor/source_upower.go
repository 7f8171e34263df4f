// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"github.com/godbus/dbus/v5"
	upower "github.com/linuxdeepin/go-dbus-factory/org.freedesktop.upower"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/dbusutil/proxy"
	"golang.org/x/xerrors"
)

var ErrNoLid = xerrors.New("lid switch not present")

// LidSource 把 UPower 的合盖状态转换为霍尔数据
type LidSource struct {
	upower  upower.UPower
	handler func(hall int)
}

func hallFromLid(closed bool) int {
	if closed {
		return hallFolded
	}
	return hallThreshold
}

func NewLidSource(conn *dbus.Conn, sigLoop *dbusutil.SignalLoop, handler func(hall int)) (*LidSource, error) {
	obj := upower.NewUPower(conn)
	present, err := obj.LidIsPresent().Get(0)
	if err != nil {
		return nil, xerrors.Errorf("get LidIsPresent: %w", err)
	}
	if !present {
		return nil, ErrNoLid
	}

	s := &LidSource{
		upower:  obj,
		handler: handler,
	}
	obj.InitSignalExt(sigLoop, true)
	err = obj.LidIsClosed().ConnectChanged(func(hasValue bool, isClosed bool) {
		if !hasValue {
			return
		}
		logger.Info("lid closed changed:", isClosed)
		if s.handler != nil {
			s.handler(hallFromLid(isClosed))
		}
	})
	if err != nil {
		obj.RemoveHandler(proxy.RemoveAllHandlers)
		return nil, err
	}
	return s, nil
}

func (s *LidSource) Hall() (int, error) {
	closed, err := s.LidIsClosed()
	if err != nil {
		return hallThreshold, err
	}
	return hallFromLid(closed), nil
}

func (s *LidSource) LidIsClosed() (bool, error) {
	return s.upower.LidIsClosed().Get(0)
}

func (s *LidSource) Destroy() {
	s.upower.RemoveHandler(proxy.RemoveAllHandlers)
}
