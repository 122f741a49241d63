package fileresolve

import "testing"

func TestToAbsolutePath_EmptyErrors(t *testing.T) {
	if _, err := ToAbsolutePath("", "/repo"); err != ErrEmptyPath {
		t.Fatalf("err = %v, want ErrEmptyPath", err)
	}
}

func TestToAbsolutePath_PreservesAbsolute(t *testing.T) {
	got, err := ToAbsolutePath("/repo/src/a.py", "/repo")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/repo/src/a.py" {
		t.Fatalf("got %q", got)
	}
}

func TestToAbsolutePath_NormalizesDotSegments(t *testing.T) {
	got, err := ToAbsolutePath("./src/../src/a.py", "/repo")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/repo/src/a.py" {
		t.Fatalf("got %q, want /repo/src/a.py", got)
	}
}

func TestFindUniqueFile_SingleMatch(t *testing.T) {
	files := []string{"src/calc.py", "tests/test_calc.py", "README.md"}
	res := FindUniqueFile("calc.py", files)
	if !res.Found || res.Path != "src/calc.py" {
		t.Fatalf("res = %+v", res)
	}
}

func TestFindUniqueFile_MultipleMatches(t *testing.T) {
	files := []string{"a/dup.py", "b/dup.py"}
	res := FindUniqueFile("dup.py", files)
	if res.Path != "" || len(res.Matches) != 2 {
		t.Fatalf("res = %+v, want 2 ambiguous matches", res)
	}
}

func TestFindUniqueFile_ExcludesVendorDirs(t *testing.T) {
	files := []string{"node_modules/pkg/calc.py", "src/calc.py"}
	res := FindUniqueFile("calc.py", files)
	if !res.Found || res.Path != "src/calc.py" {
		t.Fatalf("res = %+v, want only src/calc.py (vendor excluded)", res)
	}
}

func TestVerifyContentMatch_RejectsWrongShape(t *testing.T) {
	if VerifyContentMatch("requirements.txt", "{\"name\": \"not-python\"}") {
		t.Fatal("should reject package.json-shaped content as requirements.txt")
	}
	if !VerifyContentMatch("requirements.txt", "flask==2.0.1\nrequests>=2.0\n") {
		t.Fatal("should accept genuine requirements.txt content")
	}
}
