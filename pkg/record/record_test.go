package record

import "testing"

func TestParseSerializeRoundTrip(t *testing.T) {
	in := "{name:Alice age@2:34}"
	rec := Parse([]byte(in))
	if len(rec) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(rec))
	}
	if fv := rec["name"]; fv.Version != 1 || fv.Value != "Alice" {
		t.Fatalf("name: got %+v", fv)
	}
	if fv := rec["age"]; fv.Version != 2 || fv.Value != "34" {
		t.Fatalf("age: got %+v", fv)
	}

	out := Serialize(rec)
	if out != "{age@2:34 name:Alice}" {
		t.Fatalf("unexpected serialization: %s", out)
	}

	rec2 := Parse([]byte(out))
	if Serialize(rec2) != out {
		t.Fatalf("parse . serialize is not idempotent: %s vs %s", out, Serialize(rec2))
	}
}

func TestParseWithoutBraces(t *testing.T) {
	rec := Parse([]byte("city:Oxford"))
	if fv := rec["city"]; fv.Value != "Oxford" || fv.Version != 1 {
		t.Fatalf("got %+v", fv)
	}
}

func TestParseQuotedValue(t *testing.T) {
	rec := Parse([]byte(`{title:"Alice in Wonderland"}`))
	if fv := rec["title"]; fv.Value != "Alice in Wonderland" {
		t.Fatalf("got %q", fv.Value)
	}
	out := Serialize(rec)
	if out != `{title:"Alice in Wonderland"}` {
		t.Fatalf("unexpected serialization: %s", out)
	}
}

func TestParseQuotedEscapedQuote(t *testing.T) {
	rec := Parse([]byte(`{note:"she said \"hi\""}`))
	if fv := rec["note"]; fv.Value != `she said "hi"` {
		t.Fatalf("got %q", fv.Value)
	}
}

func TestParseMalformedFieldSkipped(t *testing.T) {
	rec := Parse([]byte("{name Alice age:34}"))
	if _, ok := rec["name"]; ok {
		t.Fatalf("malformed field without colon should not appear")
	}
	if fv := rec["age"]; fv.Value != "34" {
		t.Fatalf("age should still parse: %+v", fv)
	}
}

func TestParseDuplicateFieldLastWins(t *testing.T) {
	rec := Parse([]byte("{age:1 age:2}"))
	if fv := rec["age"]; fv.Value != "2" {
		t.Fatalf("expected last occurrence to win, got %+v", fv)
	}
}

func TestParseEmptyRecord(t *testing.T) {
	rec := Parse([]byte("{}"))
	if len(rec) != 0 {
		t.Fatalf("expected empty record, got %+v", rec)
	}
	if Serialize(rec) != "{}" {
		t.Fatalf("expected {} serialization, got %s", Serialize(rec))
	}
}

func TestMergeDisjointFields(t *testing.T) {
	a := Parse([]byte("{name:Alice}"))
	b := Parse([]byte("{age:34}"))
	merged := Merge(a, b)
	if len(merged) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(merged))
	}
}

func TestMergeHigherVersionWins(t *testing.T) {
	a := Parse([]byte("{age@1:34}"))
	b := Parse([]byte("{age@5:35}"))
	merged := Merge(a, b)
	if fv := merged["age"]; fv.Version != 5 || fv.Value != "35" {
		t.Fatalf("expected version 5 to win, got %+v", fv)
	}

	// Symmetric case: lower version passed as the first (a) operand.
	merged2 := Merge(b, a)
	if fv := merged2["age"]; fv.Version != 5 || fv.Value != "35" {
		t.Fatalf("expected version 5 to win regardless of argument order, got %+v", fv)
	}
}

func TestMergeTieGoesToRightOperand(t *testing.T) {
	a := Parse([]byte("{age@3:34}"))
	b := Parse([]byte("{age@3:99}"))
	merged := Merge(a, b)
	if fv := merged["age"]; fv.Value != "99" {
		t.Fatalf("expected tie to favor the right (second) operand, got %+v", fv)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := Parse([]byte("{name:Alice age@2:34}"))
	merged := Merge(a, a)
	if Serialize(merged) != Serialize(a) {
		t.Fatalf("Merge(a, a) should equal a: %s vs %s", Serialize(merged), Serialize(a))
	}
}

func TestMergeAssociative(t *testing.T) {
	a := Parse([]byte("{age@1:10}"))
	b := Parse([]byte("{age@2:20}"))
	c := Parse([]byte("{age@3:30}"))

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))

	if Serialize(left) != Serialize(right) {
		t.Fatalf("merge not associative: %s vs %s", Serialize(left), Serialize(right))
	}
}

func TestParseKeyedAndFormatKeyedRoundTrip(t *testing.T) {
	id, fields, ok := ParseKeyed([]byte(`{@U f1:"1" f2:"2"}`))
	if !ok {
		t.Fatalf("expected ok")
	}
	if id != "U" {
		t.Fatalf("expected id U, got %q", id)
	}
	if fields["f1"].Value != "1" || fields["f2"].Value != "2" {
		t.Fatalf("unexpected fields: %+v", fields)
	}

	out := FormatKeyed(id, fields)
	if out != `{@U f1:"1" f2:"2"}` {
		t.Fatalf("unexpected format: %s", out)
	}
}

func TestParseKeyedRejectsNonKeyedInput(t *testing.T) {
	if _, _, ok := ParseKeyed([]byte("{name:Alice}")); ok {
		t.Fatalf("expected non-keyed input to be rejected")
	}
	if _, _, ok := ParseKeyed([]byte("not-a-record")); ok {
		t.Fatalf("expected malformed input to be rejected")
	}
}

func TestFormatKeyedEmptyFields(t *testing.T) {
	if got := FormatKeyed("U", New()); got != "{@U}" {
		t.Fatalf("expected {@U}, got %s", got)
	}
}

func TestMergeAllFoldsWritesInOrder(t *testing.T) {
	writes := []Record{
		Parse([]byte("{name:Alice}")),
		Parse([]byte("{age@1:30}")),
		Parse([]byte("{age@2:31}")),
	}
	got := MergeAll(writes...)
	if fv := got["age"]; fv.Version != 2 || fv.Value != "31" {
		t.Fatalf("expected newest age to survive fold, got %+v", fv)
	}
	if fv := got["name"]; fv.Value != "Alice" {
		t.Fatalf("expected name to survive fold, got %+v", fv)
	}
}
