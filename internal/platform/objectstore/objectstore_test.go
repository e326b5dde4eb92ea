package objectstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
		Bucket:    "prune-reports",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for scheme in endpoint")
	}

	noBucket := valid
	noBucket.Bucket = " "
	if err := noBucket.Validate(); err == nil {
		t.Fatalf("Validate() expected error for missing bucket")
	}
}

func TestNewMinioStore(t *testing.T) {
	store, err := NewMinioStore(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
		Bucket:    "prune-reports",
	})
	if err != nil {
		t.Fatalf("NewMinioStore() err=%v", err)
	}
	if store.Bucket() != "prune-reports" {
		t.Fatalf("Bucket()=%q", store.Bucket())
	}
}
