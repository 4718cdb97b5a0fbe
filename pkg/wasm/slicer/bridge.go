//go:build js && wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/engine"
)

// runtime holds the page capabilities the bridge uses. They are looked up
// once by main and passed in, never fetched from the global scope later.
type runtime struct {
	fetch           js.Value // window.fetch, bound
	createObjectURL js.Value // URL.createObjectURL, bound
	blob            js.Value // Blob constructor
	uint8Array      js.Value // Uint8Array constructor
	object          js.Value // Object constructor
	array           js.Value // Array constructor
	promise         js.Value // Promise constructor
	errorCtor       js.Value // Error constructor
}

// await blocks until p settles. It must not be called on the JS event loop
// goroutine.
func await(ctx context.Context, p js.Value) (js.Value, error) {
	type result struct {
		v   js.Value
		err error
	}
	ch := make(chan result, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		ch <- result{v: arg(args, 0)}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		ch <- result{err: jsError(arg(args, 0))}
		return nil
	})
	p.Call("then", onResolve, onReject)

	select {
	case r := <-ch:
		onResolve.Release()
		onReject.Release()
		return r.v, r.err
	case <-ctx.Done():
		// The callbacks stay alive; the promise may still settle.
		return js.Undefined(), ctx.Err()
	}
}

func arg(args []js.Value, i int) js.Value {
	if i < len(args) {
		return args[i]
	}
	return js.Undefined()
}

func jsError(v js.Value) error {
	if v.Type() == js.TypeObject && v.Get("message").Type() == js.TypeString {
		return errors.New(v.Get("message").String())
	}
	if v.IsUndefined() || v.IsNull() {
		return errors.New("promise rejected")
	}
	return errors.New(v.String())
}

func (rt runtime) bytesToJS(data []byte) js.Value {
	u8 := rt.uint8Array.New(len(data))
	js.CopyBytesToJS(u8, data)
	return u8
}

func bytesFromJS(v js.Value) []byte {
	data := make([]byte, v.Get("byteLength").Int())
	js.CopyBytesToGo(data, v)
	return data
}

// jsFetcher implements assets.Fetcher with the page's fetch.
type jsFetcher struct{ rt runtime }

func (f jsFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := await(ctx, f.rt.fetch.Invoke(url))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if !resp.Get("ok").Bool() {
		return nil, fmt.Errorf("GET %s: bad status: %d %s", url, resp.Get("status").Int(), resp.Get("statusText").String())
	}
	buf, err := await(ctx, resp.Call("arrayBuffer"))
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", url, err)
	}
	return bytesFromJS(f.rt.uint8Array.New(buf)), nil
}

// blobStore implements assets.Store with object URLs.
type blobStore struct{ rt runtime }

func (s blobStore) Publish(name, contentType string, data []byte) (assets.Handle, error) {
	opts := s.rt.object.New()
	opts.Set("type", contentType)
	parts := s.rt.array.Call("of", s.rt.bytesToJS(data))
	url := s.rt.createObjectURL.Invoke(s.rt.blob.New(parts, opts))
	if url.Type() != js.TypeString {
		return "", fmt.Errorf("publish %s: no object URL", name)
	}
	return assets.Handle(url.String()), nil
}

// jsFile is an engine.Input wrapping a page File object.
type jsFile struct{ file js.Value }

func (f jsFile) Name() string { return f.file.Get("name").String() }
func (f jsFile) Size() int64  { return int64(f.file.Get("size").Float()) }

// jsEngine implements engine.Engine over an FFmpeg instance from
// @ffmpeg/ffmpeg. Every call goes through the instance's worker.
type jsEngine struct {
	rt     runtime
	ffmpeg js.Value
}

var _ engine.Engine = (*jsEngine)(nil)

func (e *jsEngine) call(ctx context.Context, method string, args ...any) (js.Value, error) {
	v, err := await(ctx, e.ffmpeg.Call(method, args...))
	if err != nil {
		return v, fmt.Errorf("%s: %w", method, err)
	}
	return v, nil
}

func (e *jsEngine) Load(ctx context.Context, cfg engine.LoadConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts := e.rt.object.New()
	opts.Set("coreURL", cfg.CoreURL.String())
	opts.Set("wasmURL", cfg.WASMURL.String())
	opts.Set("workerURL", cfg.WorkerURL.String())
	opts.Set("classWorkerURL", cfg.ClassWorkerURL.String())
	_, err := e.call(ctx, "load", opts)
	return err
}

func (e *jsEngine) CreateDir(ctx context.Context, dir string) error {
	_, err := e.call(ctx, "createDir", dir)
	return err
}

// Mount binds the page File into dir through WORKERFS under the input's
// logical name, so the bytes are read lazily and never copied.
func (e *jsEngine) Mount(ctx context.Context, dir string, in engine.Input) error {
	file, ok := engine.Unwrap(in).(jsFile)
	if !ok {
		return fmt.Errorf("cannot mount %T: only page files are supported", engine.Unwrap(in))
	}
	blob := e.rt.object.New()
	blob.Set("name", in.Name())
	blob.Set("data", file.file)
	opts := e.rt.object.New()
	opts.Set("blobs", e.rt.array.Call("of", blob))
	_, err := e.call(ctx, "mount", "WORKERFS", opts, dir)
	return err
}

func (e *jsEngine) Unmount(ctx context.Context, dir string) error {
	_, err := e.call(ctx, "unmount", dir)
	return err
}

func (e *jsEngine) RemoveDir(ctx context.Context, dir string) error {
	_, err := e.call(ctx, "deleteDir", dir)
	return err
}

func (e *jsEngine) Exec(ctx context.Context, args []string) error {
	list := e.rt.array.New()
	for _, a := range args {
		list.Call("push", a)
	}
	code, err := e.call(ctx, "exec", list)
	if err != nil {
		return err
	}
	if code.Type() == js.TypeNumber && code.Int() != 0 {
		return fmt.Errorf("exec: exit code %d", code.Int())
	}
	return nil
}

func (e *jsEngine) ListDir(ctx context.Context, dir string) ([]engine.DirEntry, error) {
	list, err := e.call(ctx, "listDir", dir)
	if err != nil {
		return nil, err
	}
	entries := make([]engine.DirEntry, 0, list.Length())
	for i := 0; i < list.Length(); i++ {
		node := list.Index(i)
		entries = append(entries, engine.DirEntry{
			Name:  node.Get("name").String(),
			IsDir: node.Get("isDir").Truthy(),
		})
	}
	return entries, nil
}

func (e *jsEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	data, err := e.call(ctx, "readFile", name)
	if err != nil {
		return nil, err
	}
	if data.Type() == js.TypeString {
		return []byte(data.String()), nil
	}
	return bytesFromJS(data), nil
}

func (e *jsEngine) DeleteFile(ctx context.Context, name string) error {
	_, err := e.call(ctx, "deleteFile", name)
	return err
}
