package format

import "testing"

func TestDefaultRegistryOrderedByPriority(t *testing.T) {
	r := Default()
	ds := r.Descriptors()
	for i := 1; i < len(ds); i++ {
		if ds[i].Priority < ds[i-1].Priority {
			t.Fatalf("descriptors not sorted by priority: %v then %v", ds[i-1], ds[i])
		}
	}
	if ds[0].ID != IDChatLab {
		t.Fatalf("expected the canonical export to sort first (priority 0), got %q", ds[0].ID)
	}
}

func TestDetectChatLabExport(t *testing.T) {
	r := Default()
	prefix := []byte(`{"chatlab":"1","meta":{},"members":[],"messages":[]}`)
	d, diag := r.Detect(prefix, "json")
	if diag != nil {
		t.Fatalf("expected a match, got diagnosis %+v", diag)
	}
	if d.ID != IDChatLab {
		t.Fatalf("expected chatlab descriptor, got %q", d.ID)
	}
}

func TestDetectQQRequiresPatternAndField(t *testing.T) {
	r := Default()
	d, diag := r.Detect([]byte(`{"qq": "12345", "msgList": []}`), "json")
	if diag != nil {
		t.Fatalf("expected a match, got diagnosis %+v", diag)
	}
	if d.ID != IDQQ {
		t.Fatalf("expected qq descriptor, got %q", d.ID)
	}
}

func TestDetectUnrecognizedReturnsPartialMatches(t *testing.T) {
	r := Default()
	// has the wxid key but is missing "messages", so wechat is a partial
	// match rather than a full one.
	d, diag := r.Detect([]byte(`{"wxid": "abc"}`), "json")
	if d != nil {
		t.Fatalf("expected no descriptor to match, got %q", d.ID)
	}
	if diag == nil {
		t.Fatal("expected a diagnosis")
	}
	found := false
	for _, pm := range diag.PartialMatches {
		if pm.FormatName == "WeChat chat export" {
			found = true
			if len(pm.MissingFields) != 1 || pm.MissingFields[0] != "messages" {
				t.Fatalf("expected only 'messages' to be reported missing, got %v", pm.MissingFields)
			}
		}
	}
	if !found {
		t.Fatal("expected WeChat to appear as a partial match")
	}
}

func TestDetectRespectsExtension(t *testing.T) {
	r := Default()
	_, diag := r.Detect([]byte(`{"chatlab":"1","meta":{},"members":[],"messages":[]}`), "txt")
	if diag == nil {
		t.Fatal("expected extension mismatch to prevent a match")
	}
}

func TestByID(t *testing.T) {
	r := Default()
	d, ok := r.ByID(IDDiscord)
	if !ok || d.Name != "Discord chat export" {
		t.Fatalf("expected to find the discord descriptor by id, got %+v ok=%v", d, ok)
	}
	if _, ok := r.ByID("nonexistent"); ok {
		t.Fatal("expected lookup of an unregistered id to fail")
	}
}
