package devops

import (
	"strings"
	"testing"

	"github.com/kingrea/agx/internal/capability"
)

func TestRegistryHoldsDemoCapabilities(t *testing.T) {
	reg, err := Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	want := []string{
		"aws_s3_bucket_public_access_block",
		"combine_two_hcl_blocks",
		"create_aws_s3_bucket",
		"log_message",
		"sanitise_resource_name",
		"save_hcl_to_file",
		"set_bucket_name",
	}
	if got := strings.Join(reg.Names(), ","); got != strings.Join(want, ",") {
		t.Fatalf("names = %s", got)
	}
}

func TestDefaults(t *testing.T) {
	reg := MustRegistry()
	save, _ := reg.Lookup("save_hcl_to_file")
	filename, ok := save.Param("filename")
	if !ok || filename.Required() || filename.Default.Str != "main.tf" {
		t.Fatalf("unexpected filename param: %+v", filename)
	}
	block, _ := reg.Lookup("aws_s3_bucket_public_access_block")
	flag, _ := block.Param("block_all_public")
	if flag.Required() || !flag.Default.Bool {
		t.Fatalf("block_all_public should default to true: %+v", flag)
	}
	logCap, _ := reg.Lookup("log_message")
	if logCap.Returns.Category != capability.CategoryVoid {
		t.Fatalf("log_message should return nothing, got %s", logCap.Returns)
	}
}

func TestPromptTemplateNamesEveryCapability(t *testing.T) {
	if !strings.Contains(PromptTemplate, "{{TASK}}") {
		t.Fatalf("prompt template lacks task placeholder")
	}
	for _, name := range MustRegistry().Names() {
		if !strings.Contains(PromptTemplate, name+"(") {
			t.Fatalf("prompt template does not mention %s", name)
		}
	}
}
