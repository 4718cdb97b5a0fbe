//go:build js && wasm

// Package main is the browser entry point. It exposes SlicerEngine to the
// page, which attaches an FFmpeg instance from @ffmpeg/ffmpeg and then
// splits user files into fixed-length segments inside the tab.
//
// JavaScript usage:
//
//	const slicer = SlicerEngine.attach(new FFmpeg(), JSON.stringify(sources));
//	const segments = await slicer.segment(file, 60, (p) => bar.value = p);
//	// segments: [{name, bytes: Uint8Array, mimeType}]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"syscall/js"

	"github.com/Snider/Slicer/pkg/assets"
	"github.com/Snider/Slicer/pkg/engine"
	"github.com/Snider/Slicer/pkg/logger"
)

// Version of the WASM module.
const Version = "0.1.0"

func main() {
	global := js.Global()
	url := global.Get("URL")
	rt := runtime{
		fetch:           global.Get("fetch").Call("bind", global),
		createObjectURL: url.Get("createObjectURL").Call("bind", url),
		blob:            global.Get("Blob"),
		uint8Array:      global.Get("Uint8Array"),
		object:          global.Get("Object"),
		array:           global.Get("Array"),
		promise:         global.Get("Promise"),
		errorCtor:       global.Get("Error"),
	}

	global.Set("SlicerEngine", js.ValueOf(map[string]any{
		"attach": js.FuncOf(func(_ js.Value, args []js.Value) any {
			return attach(rt, args)
		}),
		"version": Version,
		"ready":   true,
	}))

	dispatchReadyEvent(global)

	// Keep the WASM module alive.
	select {}
}

func dispatchReadyEvent(global js.Value) {
	doc := global.Get("document")
	if doc.IsUndefined() {
		return
	}
	event := global.Get("CustomEvent").New("slicer:ready", map[string]any{
		"detail": map[string]any{"version": Version},
	})
	doc.Call("dispatchEvent", event)
}

// attach builds a session around args[0], an FFmpeg instance, with
// optional JSON sources in args[1], and returns its JS facade.
func attach(rt runtime, args []js.Value) any {
	ffmpeg := arg(args, 0)
	if ffmpeg.Type() != js.TypeObject {
		return rt.promise.Call("reject", "SlicerEngine.attach: an FFmpeg instance is required")
	}
	sources := assets.DefaultSources()
	if raw := arg(args, 1); raw.Type() == js.TypeString {
		if err := json.Unmarshal([]byte(raw.String()), &sources); err != nil {
			return rt.promise.Call("reject", "SlicerEngine.attach: bad sources: "+err.Error())
		}
	}

	var listeners []js.Value
	journal := logger.NewJournal(func(ev logger.Event) {
		for _, l := range listeners {
			l.Invoke(eventToJS(rt, ev))
		}
	})
	log := logger.Tee(logger.NewWriter(os.Stderr, false), journal.Handler())

	session := engine.NewSession(&jsEngine{rt: rt, ffmpeg: ffmpeg},
		engine.WithFetcher(jsFetcher{rt: rt}),
		engine.WithStore(blobStore{rt: rt}),
		engine.WithSources(sources),
		engine.WithLogger(log),
	)

	return js.ValueOf(map[string]any{
		"segment": js.FuncOf(func(_ js.Value, args []js.Value) any {
			return segment(rt, session, args)
		}),
		"events": js.FuncOf(func(_ js.Value, _ []js.Value) any {
			list := rt.array.New()
			for _, ev := range journal.Events() {
				list.Call("push", eventToJS(rt, ev))
			}
			return list
		}),
		"onEvent": js.FuncOf(func(_ js.Value, args []js.Value) any {
			if fn := arg(args, 0); fn.Type() == js.TypeFunction {
				listeners = append(listeners, fn)
			}
			return nil
		}),
		"loaded": js.FuncOf(func(_ js.Value, _ []js.Value) any {
			return session.Loaded()
		}),
	})
}

// segment returns a Promise resolving to the produced segments. The work
// runs off the event loop because every engine call awaits a promise.
func segment(rt runtime, session *engine.Session, args []js.Value) any {
	file, seconds, onProgress := arg(args, 0), arg(args, 1), arg(args, 2)

	handler := js.FuncOf(func(_ js.Value, promiseArgs []js.Value) any {
		resolve, reject := promiseArgs[0], promiseArgs[1]
		go func() {
			if file.Type() != js.TypeObject {
				reject.Invoke(toJSError(rt, errors.New("no file selected")))
				return
			}
			if seconds.Type() != js.TypeNumber {
				reject.Invoke(toJSError(rt, errors.New("segment duration must be a number")))
				return
			}
			progress := func(p int) {
				if onProgress.Type() == js.TypeFunction {
					onProgress.Invoke(p)
				}
			}
			segments, err := session.Segment(context.Background(), jsFile{file: file}, seconds.Int(), progress)
			if err != nil {
				reject.Invoke(toJSError(rt, err))
				return
			}
			out := rt.array.New()
			for _, s := range segments {
				item := rt.object.New()
				item.Set("name", s.Name)
				item.Set("bytes", rt.bytesToJS(s.Data))
				item.Set("mimeType", s.MIMEType)
				out.Call("push", item)
			}
			resolve.Invoke(out)
		}()
		return nil
	})
	defer handler.Release()
	return rt.promise.New(handler)
}

func eventToJS(rt runtime, ev logger.Event) js.Value {
	v := rt.object.New()
	v.Set("kind", string(ev.Kind))
	v.Set("message", ev.Message)
	v.Set("timestamp", ev.Timestamp)
	return v
}

func toJSError(rt runtime, err error) js.Value {
	jsErr := rt.errorCtor.New(err.Error())
	var segErr *engine.SegmentError
	var loadErr *engine.LoadError
	switch {
	case errors.As(err, &segErr):
		jsErr.Set("op", segErr.Op)
		jsErr.Set("kind", "segmentation")
	case errors.As(err, &loadErr):
		jsErr.Set("op", loadErr.Op)
		jsErr.Set("kind", "load")
	}
	return jsErr
}
