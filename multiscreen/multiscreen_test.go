// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

const (
	innerID    screensession.ScreenID = 1
	externalID screensession.ScreenID = 2
	innerRS                           = 10
	externalRS                        = 20
)

type recordClient struct {
	mu           sync.Mutex
	calls        []string
	fail         map[string]bool
	onConnection func(option screensession.SessionOption, event screensession.ScreenEvent)
}

func newRecordClient() *recordClient {
	return &recordClient{fail: make(map[string]bool)}
}

func (c *recordClient) record(method string, format string, args ...interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, method+" "+fmt.Sprintf(format, args...))
	return !c.fail[method]
}

func (c *recordClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *recordClient) count(method string) int {
	n := 0
	for _, call := range c.Calls() {
		if strings.HasPrefix(call, method+" ") {
			n++
		}
	}
	return n
}

func (c *recordClient) OnCreateScreenSessionOnly(id screensession.ScreenID, rsID uint64, name string, isExtend bool) bool {
	return c.record("OnCreateScreenSessionOnly", "%d", id)
}

func (c *recordClient) OnExtendDisplayNodeChange(first, second screensession.ScreenID) bool {
	return c.record("OnExtendDisplayNodeChange", "%d %d", first, second)
}

func (c *recordClient) OnMainDisplayNodeChange(main, extend screensession.ScreenID, extendRSID uint64) bool {
	return c.record("OnMainDisplayNodeChange", "%d %d %d", main, extend, extendRSID)
}

func (c *recordClient) SetScreenCombination(main, other screensession.ScreenID, comb screensession.Combination) {
	c.record("SetScreenCombination", "%d %d %v", main, other, comb)
}

func (c *recordClient) OnScreenConnectionChange(option screensession.SessionOption, event screensession.ScreenEvent) {
	c.record("OnScreenConnectionChange", "%d %v", option.ScreenID, event)
	if c.onConnection != nil {
		c.onConnection(option, event)
	}
}

func (c *recordClient) OnPropertyChange(id screensession.ScreenID, property screensession.Property,
	reason screensession.PropertyChangeReason) {
	c.record("OnPropertyChange", "%d", id)
}

func (c *recordClient) OnDensityChange(id screensession.ScreenID, density float64) {
	c.record("OnDensityChange", "%d", id)
}

type recordListener struct {
	mu        sync.Mutex
	combos    []string
	available []string
}

func (l *recordListener) OnCombinationChanged(inner, external *screensession.ScreenSession) {
	l.mu.Lock()
	l.combos = append(l.combos, fmt.Sprintf("%v %v", inner.Combination, external.Combination))
	l.mu.Unlock()
}

func (l *recordListener) OnScreenAvailableChanged(id screensession.ScreenID, available bool) {
	l.mu.Lock()
	l.available = append(l.available, fmt.Sprintf("%d %v", id, available))
	l.mu.Unlock()
}

type fakeState struct {
	screenOn bool
	sleep    bool
	lidOpen  bool
}

func (s *fakeState) IsScreenOn() bool    { return s.screenOn }
func (s *fakeState) IsSystemSleep() bool { return s.sleep }
func (s *fakeState) IsLidOpen() bool     { return s.lidOpen }

type fixture struct {
	m        *Manager
	rs       *render.MemoryService
	client   *recordClient
	listener *recordListener
	state    *fakeState
	table    *screensession.Table
}

// newFixture 构造内屏主屏、外屏在右侧扩展的初始状态
func newFixture(t *testing.T) *fixture {
	rs := render.NewMemoryService()
	innerOut := render.OutputInfo{RSID: innerRS, Name: "eDP-1", IsBuiltin: true, Connected: true,
		Width: 1920, Height: 1080, MmWidth: 310}
	extOut := render.OutputInfo{RSID: externalRS, Name: "HDMI-1", Connected: true,
		Width: 2560, Height: 1440, MmWidth: 600}
	rs.AddOutput(innerOut)
	rs.AddOutput(extOut)
	innerNode, err := rs.ReuseDisplayNode(render.InvalidNodeID, render.NodeConfig{RSID: innerRS})
	require.NoError(t, err)
	extNode, err := rs.ReuseDisplayNode(render.InvalidNodeID, render.NodeConfig{RSID: externalRS})
	require.NoError(t, err)

	table := screensession.NewTable()
	inner := screensession.NewFromOutput(innerID, innerOut)
	inner.NodeID = innerNode
	ext := screensession.NewFromOutput(externalID, extOut)
	ext.NodeID = extNode
	ext.Combination = screensession.CombinationExtend
	ext.IsExtend = true
	ext.OffScreenRendering = true
	ext.Property.StartX = 1920
	ext.Property.OffsetX = 1920
	require.NoError(t, table.Add(inner))
	require.NoError(t, table.Add(ext))

	state := &fakeState{screenOn: true, lidOpen: true}
	m := NewManager(table, rs, state)
	client := newRecordClient()
	listener := &recordListener{}
	m.SetClient(client)
	m.SetListener(listener)
	return &fixture{m: m, rs: rs, client: client, listener: listener, state: state, table: table}
}

func (f *fixture) snapshot(_ *testing.T) []*screensession.ScreenSession {
	return f.table.List()
}

func (f *fixture) pair(t *testing.T) Pair {
	inner, ext, err := f.table.InnerAndExternal()
	require.NoError(t, err)
	return pairOf(inner, ext)
}

func TestCode(t *testing.T) {
	assert.Equal(t, DMOk, Code(nil))
	assert.Equal(t, DMErrorInvalidCalling, Code(xerrors.Errorf("x: %w", DMErrorInvalidCalling)))
	assert.Equal(t, DMErrorUnknown, Code(xerrors.New("x")))
}

func TestModeChangeAlreadyAtTarget(t *testing.T) {
	f := newFixture(t)
	err := f.m.Mode.OnMultiScreenModeChangeRequest(innerID, externalID, OperateTypeExtend)
	assert.NoError(t, err)
	assert.Empty(t, f.client.Calls())
}

func TestModeChangeUnmappedPair(t *testing.T) {
	f := newFixture(t)
	initial := f.snapshot(t)

	err := f.m.Mode.HandleModeChange(innerID, externalID,
		Pair{screensession.CombinationMain, screensession.CombinationMain})
	assert.Equal(t, DMErrorInvalidCalling, Code(err))
	assert.Equal(t, initial, f.snapshot(t))

	require.NoError(t, f.table.Update(externalID, func(s *screensession.ScreenSession) error {
		s.Combination = screensession.CombinationUnique
		return nil
	}))
	before := f.snapshot(t)
	err = f.m.Mode.OnMultiScreenModeChangeRequest(innerID, externalID, OperateTypeMirror)
	assert.Equal(t, DMErrorInvalidCalling, Code(err))

	assert.Equal(t, before, f.snapshot(t))
	assert.Empty(t, f.client.Calls())
	assert.Empty(t, f.rs.Calls()[2:])
}

func TestModeChangeInvalidScreens(t *testing.T) {
	f := newFixture(t)
	err := f.m.Mode.OnMultiScreenModeChangeRequest(innerID, 99, OperateTypeMirror)
	assert.Equal(t, DMErrorNullptr, Code(err))
	err = f.m.Mode.OnMultiScreenModeChangeRequest(innerID, innerID, OperateTypeMirror)
	assert.Equal(t, DMErrorInvalidParam, Code(err))

	f.m.SetClient(nil)
	err = f.m.Mode.OnMultiScreenModeChangeRequest(innerID, externalID, OperateTypeMirror)
	assert.Equal(t, DMErrorNullptr, Code(err))
}

func TestModeChangeExtendToMirror(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Mode.OnMultiScreenModeChangeRequest(innerID, externalID, OperateTypeMirror))

	assert.Equal(t, []string{
		"OnScreenConnectionChange 2 DISCONNECTED",
		"OnCreateScreenSessionOnly 2",
		"OnPropertyChange 2",
		"OnDensityChange 2",
		"SetScreenCombination 1 2 MIRROR",
	}, f.client.Calls())
	assert.Equal(t, []string{"MAIN MIRROR"}, f.listener.combos)

	ext, ok := f.table.Get(externalID)
	require.True(t, ok)
	inner, _ := f.table.Get(innerID)
	assert.Equal(t, screensession.CombinationMirror, ext.Combination)
	assert.True(t, ext.IsExtend)
	assert.True(t, ext.OffScreenRendering)
	assert.Equal(t, int32(0), ext.Property.StartX)
	cfg, ok := f.rs.Node(ext.NodeID)
	require.True(t, ok)
	assert.True(t, cfg.IsMirrored)
	assert.Equal(t, inner.NodeID, cfg.MirrorNodeID)
	assert.Empty(t, f.m.CurrentChange())
}

func TestModeChangeSwapMain(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Mode.HandleModeChange(innerID, externalID, pairInnerExtendExternalMain))

	// 逻辑主屏仍是 1，但背后换成了外接屏幕
	main, _ := f.table.Get(innerID)
	other, _ := f.table.Get(externalID)
	assert.Equal(t, screensession.CombinationMain, main.Combination)
	assert.Equal(t, uint64(externalRS), main.RSID)
	assert.False(t, main.IsInternal)
	assert.Equal(t, screensession.CombinationExtend, other.Combination)
	assert.Equal(t, uint64(innerRS), other.RSID)
	assert.True(t, other.IsInternal)
	assert.Equal(t, int32(2560), other.Property.StartX)
	assert.Equal(t, pairInnerExtendExternalMain, f.pair(t))

	calls := f.client.Calls()
	assert.Equal(t, 1, f.client.count("OnCreateScreenSessionOnly"))
	assert.Equal(t, "OnCreateScreenSessionOnly 2", calls[0])
	assert.Equal(t, "OnExtendDisplayNodeChange 1 2", calls[1])
	assert.Equal(t, "SetScreenCombination 1 2 EXTEND", calls[len(calls)-1])

	cfg, _ := f.rs.Node(main.NodeID)
	assert.Equal(t, uint64(externalRS), cfg.RSID)
	cfg, _ = f.rs.Node(other.NodeID)
	assert.Equal(t, uint64(innerRS), cfg.RSID)
}

func TestModeChangeRoundTrip(t *testing.T) {
	targets := []Pair{
		pairInnerMainExternalMirror,
		pairInnerMirrorExternalMain,
		pairInnerExtendExternalMain,
	}
	for _, target := range targets {
		t.Run(target.String(), func(t *testing.T) {
			f := newFixture(t)
			before := f.snapshot(t)
			require.NoError(t, f.m.Mode.HandleModeChange(innerID, externalID, target))
			assert.Equal(t, target, f.pair(t))
			require.NoError(t, f.m.Mode.HandleModeChange(innerID, externalID, pairInnerMainExternalExtend))
			assert.Equal(t, before, f.snapshot(t))
		})
	}
}

func TestModeChangeAllHandlers(t *testing.T) {
	f := newFixture(t)
	path := []Pair{
		pairInnerMainExternalMirror,
		pairInnerMirrorExternalMain,
		pairInnerExtendExternalMain,
		pairInnerMainExternalMirror,
		pairInnerExtendExternalMain,
		pairInnerMirrorExternalMain,
		pairInnerMainExternalMirror,
		pairInnerMainExternalExtend,
		pairInnerMirrorExternalMain,
		pairInnerMainExternalExtend,
		pairInnerExtendExternalMain,
		pairInnerMainExternalExtend,
	}
	before := f.snapshot(t)
	for _, target := range path {
		require.NoError(t, f.m.Mode.HandleModeChange(innerID, externalID, target), target.String())
		assert.Equal(t, target, f.pair(t))
	}
	assert.Equal(t, len(path), f.client.count("OnCreateScreenSessionOnly"))
	assert.Equal(t, len(path), f.client.count("SetScreenCombination"))
	assert.Equal(t, before, f.snapshot(t))
	assert.Len(t, f.m.Mode.handlers, 12)
}

func TestModeChangeRemoteCreateFailed(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)
	f.client.fail["OnCreateScreenSessionOnly"] = true

	err := f.m.Mode.OnMultiScreenModeChangeRequest(innerID, externalID, OperateTypeMirror)
	assert.Equal(t, DMErrorRemoteCreateFailed, Code(err))
	assert.Equal(t, before, f.snapshot(t))
	assert.Equal(t, []string{
		"OnScreenConnectionChange 2 DISCONNECTED",
		"OnCreateScreenSessionOnly 2",
		"OnScreenConnectionChange 2 CONNECTED",
	}, f.client.Calls())
	assert.Empty(t, f.listener.combos)
}

func TestModeChangeRenderFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)
	f.rs.SetFailure("SetScreenOffset", xerrors.New("offset failed"))

	err := f.m.Mode.HandleModeChange(innerID, externalID, pairInnerExtendExternalMain)
	assert.Error(t, err)
	assert.Equal(t, before, f.snapshot(t))
	assert.Equal(t, 0, f.client.count("SetScreenCombination"))
	assert.Equal(t, 2, f.client.count("OnExtendDisplayNodeChange"))

	for _, s := range before {
		cfg, ok := f.rs.Node(s.NodeID)
		require.True(t, ok)
		assert.Equal(t, s.RSID, cfg.RSID)
		assert.False(t, cfg.IsMirrored)
	}
}

func TestPowerOffAndRecover(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)

	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOff))
	recorded, ok := f.m.Power.Recorded()
	require.True(t, ok)
	assert.Equal(t, pairInnerMainExternalExtend, recorded)
	assert.Equal(t, pairInnerExtendExternalMain, f.pair(t))

	inner, ext, err := f.table.InnerAndExternal()
	require.NoError(t, err)
	assert.False(t, inner.Available)
	assert.Equal(t, render.PowerStatusOff, inner.PowerStatus)
	assert.Equal(t, screensession.CombinationMain, ext.Combination)
	status, _ := f.rs.GetScreenPowerStatus(innerRS)
	assert.Equal(t, render.PowerStatusOff, status)
	assert.Equal(t, []string{"2 false"}, f.listener.available)

	rsCalls := f.rs.Calls()
	assert.Equal(t, []string{
		fmt.Sprintf("SetScreenPowerStatus %d Off", innerRS),
		fmt.Sprintf("SetScreenPowerStatus %d On", externalRS),
	}, rsCalls[len(rsCalls)-2:])

	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOn))
	_, ok = f.m.Power.Recorded()
	assert.False(t, ok)
	assert.Equal(t, before, f.snapshot(t))
	status, _ = f.rs.GetScreenPowerStatus(innerRS)
	assert.Equal(t, render.PowerStatusOn, status)
	assert.Equal(t, []string{"2 false", "2 true"}, f.listener.available)
}

func TestPowerRecoverWithLidClosed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOff))
	f.state.lidOpen = false
	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOn))

	status, _ := f.rs.GetScreenPowerStatus(innerRS)
	assert.Equal(t, render.PowerStatusOff, status)
	assert.Equal(t, pairInnerMainExternalExtend, f.pair(t))
}

func TestPowerOffWhileSleeping(t *testing.T) {
	f := newFixture(t)
	f.state.screenOn = false
	f.state.sleep = true
	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOff))

	for _, call := range f.rs.Calls() {
		assert.NotEqual(t, fmt.Sprintf("SetScreenPowerStatus %d On", externalRS), call)
	}
}

func TestPowerOffMirrorMain(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Mode.HandleModeChange(innerID, externalID, pairInnerMirrorExternalMain))
	before := f.snapshot(t)
	inner, _, err := f.table.InnerAndExternal()
	require.NoError(t, err)
	oldNode := inner.NodeID

	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOff))
	inner, _, err = f.table.InnerAndExternal()
	require.NoError(t, err)
	assert.Equal(t, render.InvalidNodeID, inner.NodeID)
	_, ok := f.rs.Node(oldNode)
	assert.False(t, ok)

	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOn))
	inner, ext, err := f.table.InnerAndExternal()
	require.NoError(t, err)
	assert.Equal(t, pairInnerMirrorExternalMain, f.pair(t))
	assert.True(t, inner.Available)
	cfg, ok := f.rs.Node(inner.NodeID)
	require.True(t, ok)
	assert.True(t, cfg.IsMirrored)
	assert.Equal(t, ext.NodeID, cfg.MirrorNodeID)
	assert.Len(t, f.snapshot(t), len(before))
}

func TestPowerExternalDoesNotRecord(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchExternal))
	_, ok := f.m.Power.Recorded()
	assert.False(t, ok)

	err := f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOn)
	assert.Equal(t, DMErrorInvalidCalling, Code(err))
	err = f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchType(9))
	assert.Equal(t, DMErrorInvalidParam, Code(err))
}

func TestPowerOffFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot(t)
	f.rs.SetFailure("SetScreenPowerStatus", xerrors.New("power failed"))

	err := f.m.Power.OnMultiScreenPowerChangeRequest(innerID, externalID, SwitchOff)
	assert.Error(t, err)
	assert.Equal(t, before, f.snapshot(t))
	_, ok := f.m.Power.Recorded()
	assert.False(t, ok)
	assert.Empty(t, f.listener.available)
	assert.Equal(t, 2, f.client.count("OnExtendDisplayNodeChange"))
	assert.Equal(t, []string{
		"OnScreenConnectionChange 2 DISCONNECTED",
		"OnScreenConnectionChange 2 CONNECTED",
	}, filterCalls(f.client.Calls(), "OnScreenConnectionChange"))
}

func filterCalls(calls []string, method string) []string {
	var result []string
	for _, call := range calls {
		if strings.HasPrefix(call, method+" ") {
			result = append(result, call)
		}
	}
	return result
}
