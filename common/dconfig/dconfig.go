// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dconfig

import (
	"sync"

	"github.com/godbus/dbus/v5"
	DConfigManager "github.com/linuxdeepin/go-dbus-factory/org.desktopspec.ConfigManager"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/common/dconfig")

var (
	ErrNotInited    = xerrors.New("dconfig not inited")
	ErrInvalidValue = xerrors.New("dconfig invalid value")
)

type DConfig struct {
	systemConn *dbus.Conn
	dbusPath   dbus.ObjectPath
	manager    DConfigManager.Manager

	configChangedCbMap      map[string]func(interface{})
	configChangedCbMapMutex sync.Mutex
	configChangedOnce       sync.Once
	sigLoop                 *dbusutil.SignalLoop
}

func NewDConfig(appid, name, subPath string) (*DConfig, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return NewDConfigWithConn(conn, appid, name, subPath)
}

func NewDConfigWithConn(conn *dbus.Conn, appid, name, subPath string) (*DConfig, error) {
	dConfig := &DConfig{
		systemConn:         conn,
		configChangedCbMap: make(map[string]func(interface{})),
	}
	var err error
	dConfigManager := DConfigManager.NewConfigManager(conn)
	dConfig.dbusPath, err = dConfigManager.AcquireManager(0, appid, name, subPath)
	if err != nil {
		return nil, xerrors.Errorf("acquire dconfig manager %s/%s: %w", appid, name, err)
	}
	dConfig.manager, err = DConfigManager.NewManager(conn, dConfig.dbusPath)
	if err != nil {
		return nil, err
	}
	return dConfig, nil
}

func (dConfig *DConfig) GetValueString(key string) (string, error) {
	value, err := dConfig.GetValue(key)
	if err != nil {
		return "", err
	}
	v, ok := value.(string)
	if !ok {
		return "", xerrors.Errorf("get string %s: %w", key, ErrInvalidValue)
	}
	return v, nil
}

func (dConfig *DConfig) GetValueBool(key string) (bool, error) {
	value, err := dConfig.GetValue(key)
	if err != nil {
		return false, err
	}
	v, ok := value.(bool)
	if !ok {
		return false, xerrors.Errorf("get bool %s: %w", key, ErrInvalidValue)
	}
	return v, nil
}

// GetValueStringList 兼容 dbus 传回的 []string 和 []interface{} 两种形式
func (dConfig *DConfig) GetValueStringList(key string) ([]string, error) {
	value, err := dConfig.GetValue(key)
	if err != nil {
		return nil, err
	}
	return toStringList(value)
}

func toStringList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if variant, ok := item.(dbus.Variant); ok {
				item = variant.Value()
			}
			str, ok := item.(string)
			if !ok {
				return nil, ErrInvalidValue
			}
			result = append(result, str)
		}
		return result, nil
	}
	return nil, ErrInvalidValue
}

func (dConfig *DConfig) GetValue(key string) (interface{}, error) {
	if dConfig.manager == nil {
		return nil, ErrNotInited
	}
	v, err := dConfig.manager.Value(0, key)
	if err != nil {
		return nil, err
	}
	return v.Value(), nil
}

func (dConfig *DConfig) SetValue(key string, value interface{}) error {
	if dConfig.manager == nil {
		return ErrNotInited
	}
	return dConfig.manager.SetValue(0, key, dbus.MakeVariant(value))
}

func (dConfig *DConfig) ConnectConfigChanged(key string, cb func(interface{})) {
	dConfig.configChangedCbMapMutex.Lock()
	dConfig.configChangedCbMap[key] = cb
	dConfig.configChangedCbMapMutex.Unlock()

	dConfig.configChangedOnce.Do(func() {
		dConfig.sigLoop = dbusutil.NewSignalLoop(dConfig.systemConn, 10)
		dConfig.sigLoop.Start()
		dConfig.manager.InitSignalExt(dConfig.sigLoop, true)

		_, err := dConfig.manager.ConnectValueChanged(func(key string) {
			dConfig.configChangedCbMapMutex.Lock()
			cb := dConfig.configChangedCbMap[key]
			dConfig.configChangedCbMapMutex.Unlock()
			if cb == nil {
				return
			}
			value, err := dConfig.GetValue(key)
			if err != nil {
				logger.Warningf("get dconfig value %s failed: %v", key, err)
				return
			}
			go cb(value)
		})
		if err != nil {
			logger.Warning("connect dconfig ValueChanged failed:", err)
		}
	})
}

func (dConfig *DConfig) Destroy() {
	if dConfig.manager != nil {
		dConfig.manager.RemoveAllHandlers()
	}
	if dConfig.sigLoop != nil {
		dConfig.sigLoop.Stop()
	}
}
