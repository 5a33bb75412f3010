// Command bump increments the release recorded in internal/version/VERSION.txt.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vinceanalytics/wikiclicks/internal/version"
)

func main() {
	flag.Parse()
	v := load()
	switch flag.Arg(0) {
	case "major":
		v.major++
		v.minor, v.patch = 0, 0
	case "minor":
		v.minor++
		v.patch = 0
	default:
		v.patch++
	}
	if err := os.WriteFile("internal/version/VERSION.txt", []byte(v.String()+"\n"), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type release struct {
	major, minor, patch int
}

func (v release) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.major, v.minor, v.patch)
}

func load() release {
	p := strings.Split(strings.TrimPrefix(version.Release(), "v"), ".")
	var v release
	if len(p) != 3 {
		return v
	}
	v.major, _ = strconv.Atoi(p[0])
	v.minor, _ = strconv.Atoi(p[1])
	v.patch, _ = strconv.Atoi(p[2])
	return v
}
