package odict

import (
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

func BenchmarkMapIter(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkRuntimeMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=linkedHashMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkLinkedHashMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkOdictMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=odictOrderedMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkOdictOrderedMapIter[int64], genKeys[int64]))
	})
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkRuntimeMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=linkedHashMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedHashMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedHashMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkOdictMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkOdictMapGetHit[string], genKeys[string]))
	})
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetMiss[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkRuntimeMapGetMiss[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetMiss[string], genKeys[string]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictMapGetMiss[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkOdictMapGetMiss[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkOdictMapGetMiss[string], genKeys[string]))
	})
}

func BenchmarkMapPutGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutGrow[string], genKeys[string]))
	})
	b.Run("impl=linkedHashMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedHashMapPutGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedHashMapPutGrow[string], genKeys[string]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictMapPutGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkOdictMapPutGrow[string], genKeys[string]))
	})
}

func BenchmarkMapPutPreAllocate(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutPreAllocate[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutPreAllocate[string], genKeys[string]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictMapPutPreAllocate[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkOdictMapPutPreAllocate[string], genKeys[string]))
	})
}

func BenchmarkMapPutReuse(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutReuse[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutReuse[string], genKeys[string]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictMapPutReuse[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkOdictMapPutReuse[string], genKeys[string]))
	})
}

func BenchmarkMapPutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutDelete[string], genKeys[string]))
	})
	b.Run("impl=linkedHashMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedHashMapPutDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedHashMapPutDelete[string], genKeys[string]))
	})
	b.Run("impl=odictMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictMapPutDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkOdictMapPutDelete[string], genKeys[string]))
	})
}

func BenchmarkMoveToEnd(b *testing.B) {
	b.Run("impl=linkedHashMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedHashMapMoveToEnd[int64], genKeys[int64]))
	})
	b.Run("impl=odictOrderedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictOrderedMapMoveToEnd[int64], genKeys[int64]))
	})
}

func BenchmarkMoveToFront(b *testing.B) {
	b.Run("impl=odictOrderedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkOdictOrderedMapMoveToFront[int64], genKeys[int64]))
	})
}

func BenchmarkPopItem(b *testing.B) {
	b.Run("impl=odictOrderedMap", func(b *testing.B) {
		b.Run("last=true", benchSizes(benchmarkOdictOrderedMapPopItem[int64](true), genKeys[int64]))
		b.Run("last=false", benchSizes(benchmarkOdictOrderedMapPopItem[int64](false), genKeys[int64]))
	})
}

type benchTypes interface {
	int32 | int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	var t T
	switch any(t).(type) {
	case int32:
		keys := make([]int32, end-start)
		for i := range keys {
			keys[i] = int32(start + i)
		}
		return any(keys).([]T)
	case int64:
		keys := make([]int64, end-start)
		for i := range keys {
			keys[i] = int64(start + i)
		}
		return any(keys).([]T)
	case string:
		keys := make([]string, end-start)
		for i := range keys {
			keys[i] = strconv.Itoa(start + i)
		}
		return any(keys).([]T)
	default:
		panic("not reached")
	}
}

// startCounters resets the benchmark timer and starts collecting hardware
// counters for the measured loop.
func startCounters(b *testing.B) *perfbench.Counters {
	cs := perfbench.Open(b)
	b.ResetTimer()
	cs.Reset()
	return cs
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	startCounters(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += k + v
		}
	}
}

func benchmarkLinkedHashMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := linkedhashmap.New()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	startCounters(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		for it := m.Iterator(); it.Next(); {
			tmp += it.Key().(T) + it.Value().(T)
		}
	}
}

func benchmarkOdictMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := New[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	startCounters(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		m.All(func(k, v T) bool {
			tmp += k + v
			return true
		})
	}
}

func benchmarkOdictOrderedMapIter[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := NewOrdered[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	startCounters(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		for it := m.Iter(); it.Next(); {
			tmp += it.Key() + it.Value()
		}
	}
}

func benchmarkRuntimeMapGetMiss[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		m[k] = k
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		_ = m[miss[i%len(miss)]]
	}
}

func benchmarkOdictMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := New[T, T](0)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for j := range keys {
		_ = m.Put(keys[j], keys[j])
	}
	startCounters(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok, _ = m.Get(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapGetHit[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}

	// Go's builtin map has an optimization to avoid string comparisons if
	// there is pointer equality. Defeat this optimization to get a better
	// apples-to-apples comparison. This is reasonable to do because looking
	// up a value by a string key which shares the underlying string data with
	// the element in the map is a rare pattern.
	keys = genKeys(0, n)

	startCounters(b)
	for i := 0; i < b.N; i++ {
		_ = m[keys[i%n]]
	}
}

func benchmarkLinkedHashMapGetHit[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := linkedhashmap.New()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	keys = genKeys(0, n)
	startCounters(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkOdictMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := New[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	keys = genKeys(0, n)
	startCounters(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok, _ = m.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapPutGrow[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		m := make(map[T]T)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkLinkedHashMapPutGrow[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		m := linkedhashmap.New()
		for _, k := range keys {
			m.Put(k, k)
		}
	}
}

func benchmarkOdictMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	var m Map[T, T]
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		m.init(0)
		for _, k := range keys {
			_ = m.Put(k, k)
		}
	}
}

func benchmarkRuntimeMapPutPreAllocate[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		m := make(map[T]T, n)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkOdictMapPutPreAllocate[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	var m Map[T, T]
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		m.init(n)
		for _, k := range keys {
			_ = m.Put(k, k)
		}
	}
}

func benchmarkRuntimeMapPutReuse[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		for _, k := range keys {
			m[k] = k
		}
		for k := range m {
			delete(m, k)
		}
	}
}

func benchmarkOdictMapPutReuse[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := New[T, T](n)
	keys := genKeys(0, n)
	startCounters(b)
	for i := 0; i < b.N; i++ {
		for _, k := range keys {
			_ = m.Put(k, k)
		}
		m.Clear()
	}
}

func benchmarkRuntimeMapPutDelete[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = keys[j]
	}
}

func benchmarkLinkedHashMapPutDelete[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := linkedhashmap.New()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		j := i % n
		m.Remove(keys[j])
		m.Put(keys[j], keys[j])
	}
}

func benchmarkOdictMapPutDelete[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := New[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		j := i % n
		_ = m.Delete(keys[j])
		_ = m.Put(keys[j], keys[j])
	}
}

// benchmarkLinkedHashMapMoveToEnd emulates moving an entry to the end by
// removing and reinserting it, which is the only way to reorder a
// linkedhashmap.
func benchmarkLinkedHashMapMoveToEnd[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := linkedhashmap.New()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Put(k, k)
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		k := keys[i%n]
		v, _ := m.Get(k)
		m.Remove(k)
		m.Put(k, v)
	}
}

func benchmarkOdictOrderedMapMoveToEnd[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := NewOrdered[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		if err := m.MoveToEnd(keys[i%n], true); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkOdictOrderedMapMoveToFront[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := NewOrdered[T, T](n)
	keys := genKeys(0, n)
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	startCounters(b)
	for i := 0; i < b.N; i++ {
		// Walking the keys backwards moves the last entry every time.
		if err := m.MoveToEnd(keys[n-1-i%n], false); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkOdictOrderedMapPopItem[T benchTypes](
	last bool,
) func(b *testing.B, n int, genKeys func(start, end int) []T) {
	return func(b *testing.B, n int, genKeys func(start, end int) []T) {
		m := NewOrdered[T, T](n)
		keys := genKeys(0, n)
		startCounters(b)
		for i := 0; i < b.N; i++ {
			if m.Len() == 0 {
				b.StopTimer()
				for _, k := range keys {
					_ = m.Put(k, k)
				}
				b.StartTimer()
			}
			if _, _, err := m.PopItem(last); err != nil {
				b.Fatal(err)
			}
		}
	}
}
