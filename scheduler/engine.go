package scheduler

import (
	"github.com/oxcryptfs/oxcryptfs/config"
	"github.com/oxcryptfs/oxcryptfs/handles"
)

// Engine ties the lane scheduler, the decrypted-chunk cache, the
// attribute cache, and single-flight read dedup into the single entry
// point the (out-of-scope) bridge layer calls into for every filesystem
// operation (§4.4).
type Engine struct {
	sched     *Scheduler
	chunks    *ChunkCache
	attrs     *AttrCache
	readDedup *ReadDedup
}

// NewEngine builds an Engine from cfg, sizing the scheduler's worker pool
// at workers (<=0 for runtime.NumCPU()).
func NewEngine(cfg config.Config, workers int) *Engine {
	return &Engine{
		sched:     NewScheduler(cfg, workers),
		chunks:    NewChunkCache(int64(cfg.CacheBytes), cfg.CacheTTL),
		attrs:     NewAttrCache(cfg.AttributeTTL(), cfg.NegativeTTL),
		readDedup: NewReadDedup(),
	}
}

// Chunks returns the engine's decrypted-chunk cache.
func (e *Engine) Chunks() *ChunkCache { return e.chunks }

// Attrs returns the engine's attribute cache.
func (e *Engine) Attrs() *AttrCache { return e.attrs }

// Read serves a read of size bytes at offset from reader, checking the
// chunk cache first, then deduplicating concurrent identical in-flight
// reads via single-flight, and finally dispatching the actual decrypt
// through the scheduler's read lane (foreground or bulk, by size).
func (e *Engine) Read(pathKey string, reader *handles.VaultFileReader, offset int64, size int) ([]byte, error) {
	key := ChunkCacheKey{Path: pathKey, Offset: offset, Size: size}
	if data, ok := e.chunks.Get(key); ok {
		return data, nil
	}

	lane := ClassifyRead(size)
	dedupKey := ReadKey(pathKey, offset, size)

	data, _, err := e.readDedup.Do(dedupKey, func() ([]byte, error) {
		return Submit(e.sched, lane, func() ([]byte, error) {
			return reader.ReadAt(offset, size)
		})
	})
	if err != nil {
		return nil, err
	}

	e.chunks.Put(key, data)
	return data, nil
}

// SubmitMetadata runs fn on the metadata lane.
func (e *Engine) SubmitMetadata(fn func() (any, error)) (any, error) {
	return Submit(e.sched, ClassifyMetadata(), fn)
}

// SubmitStructural runs fn on the write/structural lane.
func (e *Engine) SubmitStructural(fn func() (any, error)) (any, error) {
	return Submit(e.sched, ClassifyStructural(), fn)
}

// SubmitControl runs fn on the control lane.
func (e *Engine) SubmitControl(fn func() (any, error)) (any, error) {
	return Submit(e.sched, ClassifyControl(), fn)
}

// InvalidatePath drops every cached chunk and attribute entry for
// pathKey, called after any write or structural change to keep
// subsequent reads from observing stale data (§4.4, testable property
// #12).
func (e *Engine) InvalidatePath(pathKey string) {
	e.chunks.InvalidatePath(pathKey)
	e.attrs.Invalidate(pathKey)
}

// Stop shuts down the engine's scheduler workers.
func (e *Engine) Stop() {
	e.sched.Stop()
}

// Snapshot is the JSON shape the (out-of-scope) bridge exposes on its
// diagnostics socket for `oxcryptfs diagnostics` to decode.
type Snapshot struct {
	ChunkCacheEntries int   `json:"chunk_cache_entries"`
	ChunkCacheBytes   int64 `json:"chunk_cache_bytes"`
}

// Snapshot reports the engine's current cache occupancy.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		ChunkCacheEntries: e.chunks.Len(),
		ChunkCacheBytes:   e.chunks.UsedBytes(),
	}
}
