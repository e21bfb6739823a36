package reddit

import (
	"context"
	"net/url"
)

type call struct {
	Method string
	Path   string
	Values url.Values
}

// fakeRequester records every call and answers from canned responses keyed by
// path. Unknown paths return nil.
type fakeRequester struct {
	calls     []call
	responses map[string][]any
	errs      map[string]error
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{
		responses: make(map[string][]any),
		errs:      make(map[string]error),
	}
}

// respond queues responses for path; the last one repeats.
func (f *fakeRequester) respond(path string, resp ...any) {
	f.responses[path] = append(f.responses[path], resp...)
}

func (f *fakeRequester) Get(_ context.Context, path string, params url.Values) (any, error) {
	return f.record("GET", path, params)
}

func (f *fakeRequester) Post(_ context.Context, path string, data url.Values) (any, error) {
	return f.record("POST", path, data)
}

func (f *fakeRequester) record(method, path string, v url.Values) (any, error) {
	f.calls = append(f.calls, call{Method: method, Path: path, Values: v})
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	queue := f.responses[path]
	if len(queue) == 0 {
		return nil, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[path] = queue[1:]
	}
	return resp, nil
}
