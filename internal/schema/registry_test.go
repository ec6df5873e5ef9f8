package schema

import "testing"

func TestRegisterAndGet(t *testing.T) {
	def := Definition{
		Key:   "registry-test",
		Label: "Registry Test",
		Fields: []FieldSpec{
			{Name: "Full Name", Required: true},
		},
	}
	Register(def)
	t.Cleanup(func() { unregister("registry-test") })

	got, ok := Get("registry-test")
	if !ok {
		t.Fatal("Get() did not find registered schema")
	}
	if got.Label != "Registry Test" {
		t.Errorf("Label = %q, want %q", got.Label, "Registry Test")
	}

	// Payload keys default from column names
	if got.Fields[0].Payload != "fullName" {
		t.Errorf("Payload = %q, want %q", got.Fields[0].Payload, "fullName")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register(Definition{Key: "dup-test"})
	t.Cleanup(func() { unregister("dup-test") })

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register() should panic")
		}
	}()
	Register(Definition{Key: "dup-test"})
}

func TestGetUnknownKey(t *testing.T) {
	if _, ok := Get("no-such-schema"); ok {
		t.Error("Get() found a schema that was never registered")
	}
}

func TestKeysSorted(t *testing.T) {
	Register(Definition{Key: "zz-test"})
	Register(Definition{Key: "aa-test"})
	t.Cleanup(func() {
		unregister("zz-test")
		unregister("aa-test")
	})

	keys := Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("Keys() not sorted: %v", keys)
		}
	}
	if Count() != len(keys) {
		t.Errorf("Count() = %d, want %d", Count(), len(keys))
	}
}

// unregister removes a single test schema without disturbing the bundled
// registrations.
func unregister(key string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, key)
}
