package kerr

import "testing"

func TestError(t *testing.T) {
	err := &Error{Module: "foo", Message: "bar"}
	if got, exp := err.Error(), "foo: bar"; got != exp {
		t.Fatalf("expected Error() to return %q; got %q", exp, got)
	}
}

func TestSentinel(t *testing.T) {
	var err error = Sentinel("segtab slot already occupied")
	if got, exp := err.Error(), "segtab slot already occupied"; got != exp {
		t.Fatalf("expected Error() to return %q; got %q", exp, got)
	}
}

func TestFatalInvokesHook(t *testing.T) {
	defer func(orig func(string, string)) { FatalFn = orig }(FatalFn)

	var gotModule, gotMsg string
	FatalFn = func(module, msg string) {
		gotModule, gotMsg = module, msg
	}

	Fatal("segtab", "pool exhausted")

	if gotModule != "segtab" || gotMsg != "pool exhausted" {
		t.Fatalf("expected FatalFn to be called with (%q, %q); got (%q, %q)", "segtab", "pool exhausted", gotModule, gotMsg)
	}
}
