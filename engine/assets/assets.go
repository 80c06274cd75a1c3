package assets

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/passgraph/engine/assets/loaders"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/spaghettifunk/passgraph/engine/renderer/vulkan"
)

type AssetInfo struct {
	Path        string
	Type        loaders.ResourceType
	LastChanged time.Time
}

// Event reports a pass file or shader that was created, written or removed.
type Event struct {
	Path    string
	Type    loaders.ResourceType
	Removed bool
}

type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	running  bool
	events   chan Event
	errors   chan error
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[loaders.ResourceType]Loader),
		fsnotify: fsWatch,
		events:   make(chan Event, 16),
		errors:   make(chan error, 4),
		done:     make(chan struct{}),
	}, nil
}

// Initialize indexes assetsDir and starts watching it. Pass files are loaded
// with shaders on device, or without shaders when device is nil.
func (am *AssetManager) Initialize(assetsDir string, device vulkan.Device) error {
	am.registerLoader(loaders.ResourceTypePass, &loaders.PassLoader{Device: device})
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})

	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.mutex.Lock()
	am.running = true
	am.mutex.Unlock()
	go am.start()

	core.LogInfo("watching %s (%d passes, %d shaders)", assetsDir, len(am.Assets(loaders.ResourceTypePass)), len(am.Assets(loaders.ResourceTypeShader)))
	return nil
}

// Changes delivers one event per pass or shader change until Shutdown.
func (am *AssetManager) Changes() <-chan Event {
	return am.events
}

// Errors delivers watcher failures until Shutdown.
func (am *AssetManager) Errors() <-chan error {
	return am.errors
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset manager already shut down")
	}
	return am.watchRecursive(name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Assets lists the known files of one type, sorted.
func (am *AssetManager) Assets(assetType loaders.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var paths []string
	for path, info := range am.assets {
		if info.Type == assetType {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}

// LoadAsset loads a known asset with the loader registered for its type.
func (am *AssetManager) LoadAsset(path string) (*loaders.Resource, error) {
	path = filepath.Clean(path)

	am.mutex.RLock()
	asset, exists := am.assets[path]
	loader, loaderExists := am.loaders[asset.Type]
	am.mutex.RUnlock()
	if !exists {
		return nil, errors.Newf("asset not found: %s", path)
	}
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(path)
}

// LoadPass loads a known pass file.
func (am *AssetManager) LoadPass(path string) (*loaders.PassDescription, error) {
	res, err := am.LoadAsset(path)
	if err != nil {
		return nil, err
	}
	desc, ok := res.Data.(*loaders.PassDescription)
	if !ok {
		return nil, errors.Newf("%s is a %s, not a pass", path, res.Type)
	}
	return desc, nil
}

func (am *AssetManager) UnloadAsset(res *loaders.Resource) error {
	am.mutex.RLock()
	loader, exists := am.loaders[res.Type]
	am.mutex.RUnlock()
	if !exists {
		return errors.Newf("no loader registered for asset type: %s", res.Type)
	}
	return loader.Unload(res)
}

// Shutdown stops the watcher and closes the Changes and Errors channels.
func (am *AssetManager) Shutdown() {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return
	}
	am.isClosed = true
	close(am.done)
	if !am.running {
		am.fsnotify.Close()
	}
}

func (am *AssetManager) start() {
	defer func() {
		am.fsnotify.Close()
		close(am.events)
		close(am.errors)
	}()

	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
					continue
				}
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if info, ok := am.handleFileEvent(e.Name); ok {
					am.emit(Event{Path: info.Path, Type: info.Type})
				}
			}
			// A rename reports the old name, the new one arrives as a create.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if info, ok := am.removeAsset(e.Name); ok {
					am.emit(Event{Path: info.Path, Type: info.Type, Removed: true})
				}
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)
			select {
			case am.errors <- err:
			case <-am.done:
				return
			}

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) emit(e Event) {
	select {
	case am.events <- e:
	case <-am.done:
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	assetType := determineAssetType(path)
	if assetType == loaders.ResourceTypeNone {
		return AssetInfo{}, false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()

	info := AssetInfo{
		Path:        filepath.Clean(path),
		Type:        assetType,
		LastChanged: time.Now(),
	}
	am.assets[info.Path] = info
	return info, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) (AssetInfo, bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	path = filepath.Clean(path)
	info, ok := am.assets[path]
	delete(am.assets, path)
	return info, ok
}

func determineAssetType(path string) loaders.ResourceType {
	switch {
	case loaders.IsPassFile(path):
		return loaders.ResourceTypePass
	case loaders.IsShaderFile(path):
		return loaders.ResourceTypeShader
	default:
		return loaders.ResourceTypeNone
	}
}
