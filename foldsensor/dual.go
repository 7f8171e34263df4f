// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"context"
	"sync"
	"time"

	"github.com/linuxdeepin/dde-screen-daemon/common/taskscheduler"
)

// dualManager 内外双屏设备。霍尔报告合上但角度仍接近展平时，
// 先等待一段时间看是否有新的角度上报，避免单次异常的霍尔数据切换屏幕。
type dualManager struct {
	*Manager
	app        *AppStateObserver
	isScreenOn func() bool
	scheduler  *taskscheduler.TaskScheduler

	// HandleAngleChange 收到合法角度时写入，等待中的霍尔任务据此放弃本次霍尔数据
	angleArrived chan struct{}

	mu              sync.Mutex
	isHallSwitchApp bool
}

func newDualManager(cfg Config) *dualManager {
	d := &dualManager{
		Manager:         newManager(TopologyDual, cfg),
		app:             cfg.AppObserver,
		isScreenOn:      cfg.IsScreenOn,
		scheduler:       cfg.Scheduler,
		angleArrived:    make(chan struct{}, 1),
		isHallSwitchApp: true,
	}
	d.classify = d.nextFoldState
	return d
}

func (d *dualManager) thresholds() *DualThresholds {
	return &d.getProfile().Dual
}

func (d *dualManager) notifyAngleArrived() {
	select {
	case d.angleArrived <- struct{}{}:
	default:
	}
}

func (d *dualManager) drainAngleArrived() {
	select {
	case <-d.angleArrived:
	default:
	}
}

func (d *dualManager) updateHallSwitchAppInfo(status FoldStatus) {
	if status == FoldStatusExpand || status == FoldStatusHalfFold {
		d.mu.Lock()
		d.isHallSwitchApp = true
		d.mu.Unlock()
	}
}

func (d *dualManager) nextFoldState(angle float64, hall int) FoldStatus {
	t := d.thresholds()
	state := d.CurrentStatus()
	if angle >= t.Expand {
		state = FoldStatusExpand
	}
	if angle <= t.FoldedLower {
		state = FoldStatusFolded
	}

	d.mu.Lock()
	hallSwitchApp := d.isHallSwitchApp
	d.mu.Unlock()
	if hallSwitchApp {
		if angle >= t.FoldedUpper && angle <= t.HalfFoldedMax {
			return FoldStatusHalfFold
		}
	} else if angle >= t.HalfFoldedMin && angle <= t.HalfFoldedMax {
		return FoldStatusHalfFold
	}
	return state
}

// checkUpdateAngle 过滤与霍尔数据矛盾的角度，霍尔合上时角度按 0 处理
func (d *dualManager) checkUpdateAngle(angle float64, hall int) (float64, bool) {
	t := d.thresholds()
	if angle <= t.Folded && hall == hallThreshold {
		return angle, false
	}
	if angle >= t.HallZeroInvalid && hall == hallFolded {
		return angle, false
	}
	if angle < 0 {
		return angle, false
	}
	if hall == hallFolded {
		angle = 0
	}
	return angle, true
}

func (d *dualManager) classifyAndCommit(angle float64, hall int) {
	next := d.nextFoldState(angle, hall)
	if next != d.CurrentStatus() {
		logger.Infof("angle: %v, hall: %d", angle, hall)
	}
	d.updateHallSwitchAppInfo(next)
	d.HandleSensorChange(next, []float64{angle}, []int{hall})
}

func (d *dualManager) HandleAngleChange(angle float64, hall int) {
	d.setSampleAngle(angle)
	if d.IsTentMode() {
		d.tentModeHandleSensorChange(angle, hall)
		return
	}
	angle, ok := d.checkUpdateAngle(angle, hall)
	if !ok {
		return
	}
	d.notifyAngleArrived()
	d.classifyAndCommit(angle, hall)
}

func (d *dualManager) HandleHallChange(angle float64, hall int) {
	d.setSampleHall(hall)
	t := d.thresholds()
	if hall == hallThreshold || angle < t.HallZeroInvalid {
		d.notifyAngleArrived()
		logger.Infof("angle: %v, hall: %d, hall is threshold or angle less than %v", angle, hall, t.HallZeroInvalid)
		d.handleHallChangeInner(angle, hall)
		return
	}

	d.drainAngleArrived()
	wait := d.getProfile().hallWait()
	task := func(ctx context.Context) error {
		logger.Infof("wait angle for hall change, angle: %v, hall: %d", angle, hall)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-d.angleArrived:
			logger.Info("new angle arrived, ignore hall change")
		case <-timer.C:
			d.sensorReportTimeout(angle, hall)
		}
		return nil
	}
	if d.scheduler != nil {
		d.scheduler.PostAsyncTask(task, "dualChangeFoldStatus", 0)
		return
	}
	go task(context.Background())
}

// sensorReportTimeout 等待超时后根据最新的全局数据决定如何处理霍尔变化
func (d *dualManager) sensorReportTimeout(angle float64, hall int) {
	currentAngle, currentHall := d.lastSample()
	logger.Infof("current angle: %v, current hall: %d", currentAngle, currentHall)
	if currentHall == hallThreshold {
		d.handleHallChangeInner(angle, hall)
		return
	}
	if floatEqualAbs(currentAngle, angle) {
		logger.Info("no continuous angle uploads, continue to change fold status")
		d.setSampleAngle(0)
		d.handleHallChangeInner(0, hall)
		return
	}
	if currentAngle < d.thresholds().HallZeroInvalid {
		d.handleAngleChangeInTask(currentAngle, currentHall)
		return
	}
	logger.Info("hall change wait timeout and exit")
}

func (d *dualManager) handleHallChangeInner(angle float64, hall int) {
	logger.Infof("handle hall change, angle: %v, hall: %d", angle, hall)
	if d.IsTentMode() {
		d.tentModeHandleSensorChange(angle, hall)
		return
	}
	if d.app != nil && hall == hallThreshold && d.screenOn() && d.app.IsHallSwitchApp() {
		d.mu.Lock()
		d.isHallSwitchApp = false
		d.mu.Unlock()
		return
	}
	if hall == hallThreshold {
		angle = d.thresholds().HalfFoldedMin + 1
	}
	d.classifyAndCommit(angle, hall)
}

func (d *dualManager) handleAngleChangeInTask(angle float64, hall int) {
	angle, ok := d.checkUpdateAngle(angle, hall)
	if !ok {
		return
	}
	d.classifyAndCommit(angle, hall)
}

func (d *dualManager) screenOn() bool {
	if d.isScreenOn == nil {
		return true
	}
	return d.isScreenOn()
}

// HandleAngleOrHallChange 双屏设备按一组角度和霍尔数据处理，霍尔变化走等待流程
func (d *dualManager) HandleAngleOrHallChange(angles []float64, halls []int, isPostureRegistered bool) {
	angle, hall, ok := d.firstSample(angles, halls)
	if !ok {
		return
	}
	_, lastHall := d.lastSample()
	if hall != lastHall {
		d.HandleHallChange(angle, hall)
		return
	}
	d.HandleAngleChange(angle, hall)
}
