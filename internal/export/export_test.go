package export

import (
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw     string
		want    Target
		wantErr bool
	}{
		{raw: "", want: Target{Kind: TargetStdout}},
		{raw: "-", want: Target{Kind: TargetStdout}},
		{raw: "out.zip", want: Target{Kind: TargetFile, Path: "out.zip"}},
		{raw: "/tmp/a/out.zip", want: Target{Kind: TargetFile, Path: "/tmp/a/out.zip"}},
		{raw: "s3://bucket/key.zip", want: Target{Kind: TargetS3, Bucket: "bucket", Key: "key.zip"}},
		{raw: "s3://bucket/nested/key.zip", want: Target{Kind: TargetS3, Bucket: "bucket", Key: "nested/key.zip"}},
		{raw: "s3://bucket", wantErr: true},
		{raw: "s3://bucket/dir/", wantErr: true},
		{raw: "s3:///key", wantErr: true},
		{raw: "gs://bucket/key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTarget(%q) = %+v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTarget_String(t *testing.T) {
	if got := (Target{Kind: TargetS3, Bucket: "b", Key: "k/x.zip"}).String(); got != "s3://b/k/x.zip" {
		t.Errorf("String() = %q", got)
	}
	if got := (Target{Kind: TargetStdout}).String(); got != "-" {
		t.Errorf("String() = %q", got)
	}
}
