package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSecondsMapFlattensLegacyShape(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want SecondsMap
	}{
		{
			name: "flat",
			in:   `{"q1": 30, "q2": 12.5}`,
			want: SecondsMap{"q1": 30, "q2": 12.5},
		},
		{
			name: "legacy nested",
			in:   `{"questions": {"q1": 30, "q2": 12.5}}`,
			want: SecondsMap{"q1": 30, "q2": 12.5},
		},
		{
			name: "nested mixed with flat keys",
			in:   `{"questions": {"q1": 30}, "q2": 12.5}`,
			want: SecondsMap{"q1": 30, "q2": 12.5},
		},
		{
			name: "question id literally named questions with numeric value",
			in:   `{"questions": 7}`,
			want: SecondsMap{"questions": 7},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got SecondsMap
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestSecondsMapScanNormalizesStoredLegacyRow(t *testing.T) {
	// 旧版客户端写进库里的嵌套结构，读出来也要摊平
	var m SecondsMap
	if err := m.Scan([]byte(`{"questions": {"q7": 90}}`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if m["q7"] != 90 {
		t.Errorf("m = %v, want q7=90", m)
	}
}

func TestAnswerMapScanValueRoundTrip(t *testing.T) {
	in := AnswerMap{
		"q1": "A",
		"q2": []interface{}{"opt1", "opt3"},
	}
	val, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out AnswerMap
	if err := out.Scan(val); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out["q1"] != "A" {
		t.Errorf("q1 = %v", out["q1"])
	}
	multi, ok := out["q2"].([]interface{})
	if !ok || len(multi) != 2 {
		t.Errorf("q2 = %v, want two options", out["q2"])
	}
}

func TestJSONColumnsScanNil(t *testing.T) {
	var answers AnswerMap
	if err := answers.Scan(nil); err != nil {
		t.Errorf("AnswerMap: %v", err)
	}
	var marks MarkMap
	if err := marks.Scan(nil); err != nil {
		t.Errorf("MarkMap: %v", err)
	}
	var log TabSwitchLog
	if err := log.Scan(nil); err != nil {
		t.Errorf("TabSwitchLog: %v", err)
	}
	if answers != nil || marks != nil || log != nil {
		t.Error("nil column must stay nil after scan")
	}
}

func TestTabSwitchLogValue(t *testing.T) {
	var empty TabSwitchLog
	val, err := empty.Value()
	if err != nil {
		t.Fatal(err)
	}
	if val != nil {
		t.Errorf("nil log stores NULL, got %v", val)
	}

	log := TabSwitchLog{{Timestamp: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), Count: 2}}
	val, err = log.Value()
	if err != nil {
		t.Fatal(err)
	}
	var out TabSwitchLog
	if err := out.Scan(val); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Count != 2 {
		t.Errorf("round trip = %+v", out)
	}
}
