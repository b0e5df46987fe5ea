package index

import (
	"errors"
	"reflect"
	"testing"

	"github.com/franz/bcr-index/internal/recording"
)

func TestUpgrade_IdempotentAndMonotonic(t *testing.T) {
	docs := []Document{
		{SchemaVersion: 0, Data: sampleIndex()},
		{SchemaVersion: SchemaVersion, Data: sampleIndex()},
		{SchemaVersion: 0, Data: recording.Index{}},
	}

	for _, d := range docs {
		once, err := Upgrade(d)
		if err != nil {
			t.Fatalf("Upgrade(v%d) failed: %v", d.SchemaVersion, err)
		}
		twice, err := Upgrade(once)
		if err != nil {
			t.Fatalf("Upgrade(Upgrade(v%d)) failed: %v", d.SchemaVersion, err)
		}

		if once.SchemaVersion != SchemaVersion {
			t.Errorf("Upgrade(v%d).SchemaVersion = %d, expected %d", d.SchemaVersion, once.SchemaVersion, SchemaVersion)
		}
		if once.SchemaVersion < d.SchemaVersion {
			t.Errorf("Upgrade(v%d) lowered the version to %d", d.SchemaVersion, once.SchemaVersion)
		}
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Upgrade is not idempotent: %+v then %+v", once, twice)
		}
	}
}

func TestUpgrade_DoesNotModifyInput(t *testing.T) {
	d := Document{SchemaVersion: 0, Data: sampleIndex()}
	migrations[0] = func(doc *Document) error {
		doc.Data[0].Name = "renamed"
		return nil
	}
	defer delete(migrations, 0)

	out, err := Upgrade(d)
	if err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if out.Data[0].Name != "renamed" {
		t.Errorf("migration step did not run, name = %q", out.Data[0].Name)
	}
	if d.SchemaVersion != 0 || d.Data[0].Name != "John Doe" {
		t.Errorf("Upgrade modified its input: %+v", d)
	}
}

func TestUpgrade_StepFailure(t *testing.T) {
	stepErr := errors.New("boom")
	migrations[0] = func(doc *Document) error { return stepErr }
	defer delete(migrations, 0)

	_, err := Upgrade(Document{SchemaVersion: 0})
	if !errors.Is(err, stepErr) {
		t.Errorf("Upgrade error = %v, expected %v", err, stepErr)
	}
}

func TestEncode_Indented(t *testing.T) {
	data, err := Encode(recording.Index{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	expected := "{\n  \"schemaVersion\": 1,\n  \"data\": []\n}"
	if string(data) != expected {
		t.Errorf("Encode(empty) = %q, expected %q", data, expected)
	}
}
