// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/linuxdeepin/go-lib/strv"
)

const profileReloadDelay = 100 * time.Millisecond

// ProfileWatcher 监听 profile 文件所在目录，文件变化后重新加载
type ProfileWatcher struct {
	paths    []string
	onChange func(*Profile)
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
	quit  chan struct{}
	done  chan struct{}
}

func NewProfileWatcher(paths []string, onChange func(*Profile)) (*ProfileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &ProfileWatcher{
		paths:    paths,
		onChange: onChange,
		watcher:  watcher,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	var dirs strv.Strv
	for _, p := range paths {
		dir := filepath.Dir(p)
		if !dirs.Contains(dir) {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range dirs {
		err = watcher.Add(dir)
		if err != nil {
			logger.Debugf("watch dir %q failed: %v", dir, err)
		}
	}
	go w.loop()
	return w, nil
}

func (w *ProfileWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warning("profile watcher error:", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strv.Strv(w.paths).Contains(ev.Name) || ev.Op&fsnotify.Chmod == ev.Op {
				continue
			}
			logger.Debug("profile file event:", ev)
			w.scheduleReload()
		}
	}
}

// 短时间内的多次写入只重新加载一次
func (w *ProfileWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(profileReloadDelay)
		return
	}
	w.timer = time.AfterFunc(profileReloadDelay, w.reload)
}

func (w *ProfileWatcher) reload() {
	select {
	case <-w.quit:
		return
	default:
	}
	profile, path, err := LoadProfile(w.paths)
	if err != nil {
		logger.Warning("reload profile failed:", err)
		return
	}
	logger.Infof("fold profile reloaded from %q", path)
	if w.onChange != nil {
		w.onChange(profile)
	}
}

func (w *ProfileWatcher) Close() error {
	select {
	case <-w.quit:
		return nil
	default:
	}
	close(w.quit)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.watcher.Close()
	<-w.done
	return err
}
