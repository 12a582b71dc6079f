package args

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

func TestParse_Positionals(t *testing.T) {
	schema := MustCompile("a:vmid b:vmid c:string")

	values, err := schema.Parse([]string{"100", "200", "hello"})
	require.NoError(t, err)

	assert.Equal(t, 100, values.Int("A"))
	assert.Equal(t, 200, values.Int("b"))
	assert.Equal(t, "hello", values.String("C"))
	assert.Equal(t, []string{"A", "B", "C"}, values.Keys())
}

func TestParse_VMIDOutOfRange(t *testing.T) {
	schema := MustCompile("a:vmid b:vmid c:string")

	values, err := schema.Parse([]string{"50", "200", "hello"})
	require.Error(t, err)

	var usage *engine.UsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, "a", usage.Param)
	assert.Equal(t, "50", usage.Value)
	assert.Equal(t, engine.ExitUsage, engine.ExitCode(err))
	assert.Zero(t, values.Len())
}

func TestParse_TypeErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		tokens []string
		param  string
	}{
		{"vmid above max", "id:vmid", []string{"1000000000"}, "id"},
		{"vmid not numeric", "id:vmid", []string{"abc"}, "id"},
		{"int not numeric", "n:int", []string{"1.5"}, "n"},
		{"bad ip", "addr:ip", []string{"10.0.0.300"}, "addr"},
		{"ipv6 rejected", "addr:ip", []string{"::1"}, "addr"},
		{"bad storage", "s:storage", []string{"1local"}, "s"},
		{"bad memory", "m:memory", []string{"lots"}, "m"},
		{"tiny memory", "m:memory", []string{"512K"}, "m"},
		{"bad node", "n:node", []string{"pve_1!"}, "n"},
		{"bad choice", "a:choice(start|stop)", []string{"pause"}, "a"},
		{"missing required", "a:vmid b:vmid", []string{"100"}, "b"},
		{"missing flag value", "--mode:string?", []string{"--mode"}, "mode"},
		{"duplicate flag", "--n:int?", []string{"--n", "1", "--n", "2"}, "n"},
		{"value on bool flag", "--purge:flag", []string{"--purge=yes"}, "purge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MustCompile(tt.schema).Parse(tt.tokens)
			var usage *engine.UsageError
			require.ErrorAs(t, err, &usage)
			assert.Equal(t, tt.param, usage.Param)
		})
	}
}

func TestParse_ArityErrors(t *testing.T) {
	schema := MustCompile("first:vmid last:vmid?")

	_, err := schema.Parse([]string{"100", "200", "300"})
	assert.True(t, engine.IsUsage(err))

	_, err = schema.Parse([]string{"100", "--bogus"})
	assert.True(t, engine.IsUsage(err))
	assert.Contains(t, err.Error(), "unknown flag --bogus")
}

func TestParse_OptionalAndDefaults(t *testing.T) {
	schema := MustCompile("first:vmid last:vmid? --mode:choice(snapshot|suspend|stop)=snapshot --purge:flag --note:string?")

	values, err := schema.Parse([]string{"100"})
	require.NoError(t, err)

	assert.Equal(t, 100, values.Int("first"))
	assert.False(t, values.Has("last"))
	assert.Equal(t, 100, values.IntOr("last", 100))
	assert.Equal(t, "snapshot", values.String("mode"))
	assert.False(t, values.Bool("purge"))
	assert.False(t, values.Has("note"))
}

func TestParse_FlagsInterleaved(t *testing.T) {
	schema := MustCompile("first:vmid last:vmid --mode:choice(snapshot|stop)=snapshot --purge:flag")

	values, err := schema.Parse([]string{"--purge", "100", "--mode=stop", "105"})
	require.NoError(t, err)

	assert.Equal(t, 100, values.Int("first"))
	assert.Equal(t, 105, values.Int("last"))
	assert.Equal(t, "stop", values.String("MODE"))
	assert.True(t, values.Bool("purge"))
}

func TestParse_ListIsVerbatim(t *testing.T) {
	schema := MustCompile("first:vmid last:vmid command:list --dry-run:flag")

	values, err := schema.Parse([]string{"--dry-run", "100", "101", "qm", "set", "{id}", "--onboot", "1"})
	require.NoError(t, err)

	assert.True(t, values.Bool("dry-run"))
	assert.Equal(t, []string{"qm", "set", "{id}", "--onboot", "1"}, values.List("command"))
}

func TestParse_DoubleDashEndsFlags(t *testing.T) {
	schema := MustCompile("name:string --force:flag")

	values, err := schema.Parse([]string{"--", "--force"})
	require.NoError(t, err)

	assert.Equal(t, "--force", values.String("name"))
	assert.False(t, values.Bool("force"))
}

func TestParse_RequiredList(t *testing.T) {
	_, err := MustCompile("ids:list").Parse(nil)
	var usage *engine.UsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, "ids", usage.Param)
}

func TestParse_Memory(t *testing.T) {
	schema := MustCompile("size:memory")

	tests := []struct {
		in  string
		mib uint64
	}{
		{"2048", 2048},
		{"512M", 512},
		{"4G", 4096},
		{"4g", 4096},
		{"2GiB", 2048},
		{"1.5G", 1536},
		{"4GB", 4096},
		{"4gb", 4096},
		{"512MiB", 512},
		{"1024K", 1},
		{"1T", 1 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			values, err := schema.Parse([]string{tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.mib, values.MiB("size"))
			assert.Equal(t, tt.mib<<20, values.Bytes("size"))
		})
	}
}

func TestParse_MemoryErrors(t *testing.T) {
	schema := MustCompile("size:memory")

	tests := []struct {
		in     string
		reason string
	}{
		{"0", "at least 1 MiB"},
		{"512K", "at least 1 MiB"},
		{"1500K", "whole number of MiB"},
		{"17592186044416", "too large"},
		{"99999999999999999999", "too large"},
		{"16777216T", "too large"},
		{"lots", "not a memory size"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := schema.Parse([]string{tt.in})
			require.Error(t, err)
			assert.True(t, engine.IsUsage(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestParse_Help(t *testing.T) {
	schema := MustCompile("first:vmid")

	_, err := schema.Parse([]string{"-h"})
	assert.True(t, errors.Is(err, ErrHelp))

	_, err = schema.Parse([]string{"100", "--help"})
	assert.True(t, errors.Is(err, ErrHelp))

	values, err := schema.Parse([]string{"--", "-h"})
	assert.True(t, engine.IsUsage(err), "-h after -- is a positional")
	assert.Zero(t, values.Len())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"missing type", "first"},
		{"unknown type", "first:uuid"},
		{"bad name", "1st:vmid"},
		{"duplicate", "a:int A:int"},
		{"positional flag", "purge:flag"},
		{"flag list", "--ids:list"},
		{"list not last", "ids:list first:vmid"},
		{"required after optional", "a:int? b:int"},
		{"invalid default", "--mode:choice(a|b)=c"},
		{"vmid default out of range", "--first:vmid=5"},
		{"empty choice", "a:choice(x||y)"},
		{"comma in choice", "a:choice(a,b|c)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.def)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustCompile("first:uuid") })

	_, err := parseType("choice(a=b|c)")
	assert.Error(t, err)
	_, err = parseType("choice(a,b|c)")
	assert.Error(t, err)
}

func TestUsage(t *testing.T) {
	schema := MustCompile("action:choice(start|stop) first:vmid last:vmid? --dry-run:flag --mode:string=snapshot")

	usage := schema.Usage("pvebulk power")
	assert.Contains(t, usage, "usage: pvebulk power <action> <first> [last] [--dry-run] [--mode <string>]")
	assert.Contains(t, usage, "choice(start|stop)")
	assert.Contains(t, usage, "(default snapshot)")
}
