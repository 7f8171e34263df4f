// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

// 测试中没有 service，属性只更新不发送信号

func (m *Manager) emitPropChanged(name string, value interface{}) {
	if m.service == nil {
		return
	}
	err := m.service.EmitPropertyChanged(m, name, value)
	if err != nil {
		logger.Warningf("emit property %s changed failed: %v", name, err)
	}
}

func (m *Manager) emitSignal(name string, args ...interface{}) {
	if m.service == nil {
		return
	}
	err := m.service.Emit(m, name, args...)
	if err != nil {
		logger.Warningf("emit signal %s failed: %v", name, err)
	}
}

func (m *Manager) setPropScreenState(value string) (changed bool) {
	m.PropsMu.Lock()
	if m.ScreenState != value {
		m.ScreenState = value
		changed = true
	}
	m.PropsMu.Unlock()
	if changed {
		m.emitPropChanged("ScreenState", value)
	}
	return
}

func (m *Manager) setPropFoldStatus(value uint32) (changed bool) {
	m.PropsMu.Lock()
	if m.FoldStatus != value {
		m.FoldStatus = value
		changed = true
	}
	m.PropsMu.Unlock()
	if changed {
		m.emitPropChanged("FoldStatus", value)
	}
	return
}

func (m *Manager) setPropFoldDisplayMode(value uint32) (changed bool) {
	m.PropsMu.Lock()
	if m.FoldDisplayMode != value {
		m.FoldDisplayMode = value
		changed = true
	}
	m.PropsMu.Unlock()
	if changed {
		m.emitPropChanged("FoldDisplayMode", value)
	}
	return
}

func (m *Manager) setPropTentMode(value bool) (changed bool) {
	m.PropsMu.Lock()
	if m.TentMode != value {
		m.TentMode = value
		changed = true
	}
	m.PropsMu.Unlock()
	if changed {
		m.emitPropChanged("TentMode", value)
	}
	return
}

func (m *Manager) getScreenState() string {
	m.PropsMu.RLock()
	defer m.PropsMu.RUnlock()
	return m.ScreenState
}
