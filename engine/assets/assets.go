package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/voxelray/engine/assets/loaders"
	"github.com/spaghettifunk/voxelray/engine/core"
)

const shaderExt = ".spv"

type AssetInfo struct {
	Path       string
	LastLoaded time.Time
}

// AssetManager serves the compiled kernels of one shader directory and, once watching,
// reports kernels rewritten on disk by name.
type AssetManager struct {
	dir     string
	assets  map[string]AssetInfo
	loader  Loader
	changed chan string

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(shaderDir string) (*AssetManager, error) {
	am := &AssetManager{
		dir:     shaderDir,
		assets:  make(map[string]AssetInfo),
		loader:  &loaders.ShaderLoader{},
		changed: make(chan string, 16),
		done:    make(chan struct{}),
	}

	entries, err := os.ReadDir(shaderDir)
	if err != nil {
		return nil, fmt.Errorf("reading shader directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			am.handleFileEvent(filepath.Join(shaderDir, e.Name()))
		}
	}
	core.LogDebug("Found %d shaders in %s.", len(am.assets), shaderDir)
	return am, nil
}

// LoadShader reads the kernel called name from disk.
func (am *AssetManager) LoadShader(name string) ([]uint32, error) {
	am.mutex.Lock()
	asset, exists := am.assets[name]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[name] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("shader %q not found in %s", name, am.dir)
	}

	res, err := am.loader.Load(asset.Path)
	if err != nil {
		return nil, err
	}
	return res.Code, nil
}

// Watch starts reporting rewritten shaders on Changed.
func (am *AssetManager) Watch() error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if am.fsnotify != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(am.dir); err != nil {
		w.Close()
		return err
	}
	am.fsnotify = w

	am.wg.Add(1)
	go am.start()
	return nil
}

// Changed delivers the names of shaders created or written since the last receive. Drops
// repeats while the receiver is behind.
func (am *AssetManager) Changed() <-chan string {
	return am.changed
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.wg.Wait()
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e := <-am.fsnotify.Events:
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if name, ok := am.handleFileEvent(e.Name); ok {
					select {
					case am.changed <- name:
					default:
					}
				}
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err := <-am.fsnotify.Errors:
			core.LogError("shader watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// handleFileEvent indexes path if it is a shader and returns its name.
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	if filepath.Ext(path) != shaderExt {
		return "", false
	}
	name := loaders.ShaderName(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{Path: path}
	return name, true
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, loaders.ShaderName(path))
}
