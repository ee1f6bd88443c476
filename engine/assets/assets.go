package assets

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/systems"
)

var ErrManagerClosed = errors.New("asset manager already closed")

type AssetInfo struct {
	Path     string
	Format   Format
	Modified time.Time
}

/**
 * @brief Indexes the model files of a directory tree and keeps the index
 * current with fsnotify. Every created or written model file fires
 * EVENT_CODE_MODEL_CHANGED with the path in Data.C[0].
 */
type AssetManager struct {
	loader *ModelLoader
	events *core.EventBus

	mutex  sync.RWMutex
	assets map[string]AssetInfo

	fsnotify  *fsnotify.Watcher
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	isClosed  bool
}

func NewAssetManager(loader *ModelLoader, events *core.EventBus) (*AssetManager, error) {
	if loader == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "asset manager needs a model loader")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	return &AssetManager{
		loader:   loader,
		events:   events,
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

// Watch indexes dir recursively and starts following its changes. It can
// be called again to add more directories.
func (am *AssetManager) Watch(dir string) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return ErrManagerClosed
	}
	if err := am.watchRecursive(dir); err != nil {
		return err
	}
	am.startOnce.Do(func() { go am.start() })
	return nil
}

// Assets returns the indexed model files sorted by path.
func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (am *AssetManager) start() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)
		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())
		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch '%s': %s", e.Name, err.Error())
			}
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if am.handleFileEvent(e.Name) {
			ctx := core.EventContext{}
			ctx.Data.C[0] = e.Name
			am.events.Fire(core.EVENT_CODE_MODEL_CHANGED, am, ctx)
		}
	}
	// A removed path may have been a directory; fsnotify drops its watch itself.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
	}
}

// watchRecursive adds dir and all directories under it to the watch list,
// indexing the model files found on the way.
func (am *AssetManager) watchRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return errors.Wrapf(am.fsnotify.Add(path), "failed to watch '%s'", path)
		}
		am.handleFileEvent(path)
		return nil
	})
}

// handleFileEvent indexes a model file. Returns false for other files.
func (am *AssetManager) handleFileEvent(path string) bool {
	format := FormatOf(path)
	if format == FormatNone {
		return false
	}
	info := AssetInfo{Path: path, Format: format, Modified: time.Now()}
	if s, err := os.Stat(path); err == nil {
		info.Modified = s.ModTime()
	}
	am.mutex.Lock()
	am.assets[path] = info
	am.mutex.Unlock()
	return true
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

/** @brief The outcome of loading one file with LoadAll. */
type LoadResult struct {
	Path  string
	Model *Model
	Err   error
}

/**
 * @brief Loads several model files concurrently on the job system. Results
 * come back in the order of paths; a failed file carries its error and
 * does not stop the others.
 */
func (am *AssetManager) LoadAll(ctx context.Context, jobs *systems.JobSystem, paths []string) ([]LoadResult, error) {
	results := make([]LoadResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i := i
		results[i].Path = path
		wg.Add(1)
		err := jobs.Submit(ctx, systems.JobTask{
			Name:        "load " + filepath.Base(path),
			InputParams: path,
			OnStart: func(params interface{}) (interface{}, error) {
				return am.loader.Load(params.(string))
			},
			OnComplete: func(result interface{}) {
				results[i].Model = result.(*Model)
				am.fireLoaded(results[i].Model, path)
			},
			OnFailure: func(err error) {
				results[i].Err = err
			},
			OnCompletionCallback: wg.Done,
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
			wg.Wait()
			return results, errors.Wrap(err, "model loading interrupted")
		}
	}
	wg.Wait()
	return results, nil
}

func (am *AssetManager) fireLoaded(m *Model, path string) {
	ctx := core.EventContext{Payload: &m.Metadata}
	ctx.Data.C[0] = path
	ctx.Data.C[1] = string(m.Metadata.Format)
	am.events.Fire(core.EVENT_CODE_MODEL_LOADED, am, ctx)
}

// Shutdown stops the watcher. It is safe to call more than once.
func (am *AssetManager) Shutdown() error {
	var err error
	am.closeOnce.Do(func() {
		am.mutex.Lock()
		am.isClosed = true
		am.mutex.Unlock()
		close(am.done)
		err = am.fsnotify.Close()
	})
	return err
}
