package storage

import (
	"context"
	"strings"
	"testing"
)

func TestObjectKey(t *testing.T) {
	k := ObjectKey("/photos/12/", "IMG_0001.JPG")
	if !strings.HasPrefix(k, "photos/12/") || !strings.HasSuffix(k, ".jpg") {
		t.Fatalf("key = %q", k)
	}
	if k2 := ObjectKey("photos/12", "IMG_0001.JPG"); k2 == k {
		t.Fatalf("keys must be unique")
	}
	if k := ObjectKey("", "x.averyverylongextension"); strings.Contains(k, ".") {
		t.Fatalf("long extension kept: %q", k)
	}
}

func TestMemoryPutDelete(t *testing.T) {
	m := NewMemory()
	obj, err := m.Put(context.Background(), "sig", "a.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if !m.Has(obj.Key) || !strings.HasSuffix(obj.URL, obj.Key) {
		t.Fatalf("object %+v not stored", obj)
	}
	_ = m.Delete(context.Background(), obj.Key)
	if m.Len() != 0 {
		t.Fatalf("object not deleted")
	}
}

func TestS3URL(t *testing.T) {
	u := &S3{Bucket: "fo-uploads", Region: "eu-west-1"}
	if got := u.URL("photos/a.jpg"); got != "https://fo-uploads.s3.eu-west-1.amazonaws.com/photos/a.jpg" {
		t.Fatalf("bucket url = %s", got)
	}
	u.PublicBaseURL = "https://cdn.example.com/"
	if got := u.URL("photos/a.jpg"); got != "https://cdn.example.com/photos/a.jpg" {
		t.Fatalf("cdn url = %s", got)
	}
}
