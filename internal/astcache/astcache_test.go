package astcache_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobolsharp/cobolsharp-go/internal/astcache"
	"github.com/cobolsharp/cobolsharp-go/internal/cobol"
	"github.com/cobolsharp/cobolsharp-go/internal/ir"
)

func sampleTree() *ir.Tree {
	return &ir.Tree{
		SectionName: "main",
		Root: ir.Seq{Items: []ir.Node{
			ir.Leaf{Statement: cobol.Other{Text: "move 1 to a", Span: cobol.Span{Line: 1}}},
			ir.If{
				Condition: "a = 1",
				Then: ir.Seq{Items: []ir.Node{
					ir.Leaf{Statement: cobol.Other{Text: "move 2 to b"}},
					ir.Break{LoopID: 0},
				}},
				Else: ir.Goto{Label: "L5"},
			},
			ir.Loop{
				Kind:      ir.LoopWhile,
				Condition: "a < 10",
				LoopID:    0,
				Body: ir.Seq{Items: []ir.Node{
					ir.Call{Target: "increment"},
					ir.Continue{LoopID: 0},
				}},
			},
			ir.Comment{Text: "join with 2 predecessors: chose goto"},
			ir.Label{Name: "L5"},
			ir.Return{},
		}},
	}
}

func TestCacheGetPutRoundTripsInMemory(t *testing.T) {
	c := astcache.New(4)
	key := astcache.Key{SourcePath: "x.cbl", ModTime: 1, Section: "main"}
	tree := sampleTree()

	c.Put(key, tree)
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, tree, got)
}

func TestCacheSaveLoadRoundTripsThroughMsgpack(t *testing.T) {
	c := astcache.New(4)
	key := astcache.Key{SourcePath: "x.cbl", ModTime: 42, Section: "main"}
	tree := sampleTree()
	c.Put(key, tree)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	c2 := astcache.New(4)
	require.NoError(t, c2.Load(&buf))

	got, ok := c2.Get(key)
	require.True(t, ok, "expected key to survive the msgpack round-trip")
	assert.Equal(t, tree, got)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := astcache.New(2)
	k1 := astcache.Key{SourcePath: "a.cbl", Section: "s1"}
	k2 := astcache.Key{SourcePath: "a.cbl", Section: "s2"}
	k3 := astcache.Key{SourcePath: "a.cbl", Section: "s3"}

	c.Put(k1, sampleTree())
	c.Put(k2, sampleTree())
	c.Put(k3, sampleTree()) // evicts k1, the least recently used

	_, ok := c.Get(k1)
	assert.False(t, ok)
	_, ok = c.Get(k2)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	c := astcache.New(4)
	err := c.LoadFile("/nonexistent/path/does-not-exist.msgpack")
	assert.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}
