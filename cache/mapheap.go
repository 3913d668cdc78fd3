package cache

import "container/heap"

// item is one entry of the eviction queue: a cache id and the priority it
// is ranked by (an access counter).
type item struct {
	Key      uint64
	Priority uint64
	index    int // index in the heap, maintained by the heap package
}

// MapHeap combines a binary min-heap with a hash map: O(log n) priority
// operations and O(1) key lookups. The AttributeListCache uses it to find
// its eviction victim (minimum priority) while still being able to remove
// or reprioritize a specific entry when it is touched.
//
// Not safe for concurrent use; the owning cache holds its own lock.
type MapHeap struct {
	items    []*item
	itemsMap map[uint64]*item
}

// NewMapHeap creates an empty queue.
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*item, 0),
		itemsMap: make(map[uint64]*item),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap) Len() int { return len(mh.items) }

// Less compares items by priority, minimum first (part of heap.Interface)
func (mh *MapHeap) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap) Push(x interface{}) {
	n := len(mh.items)
	it := x.(*item)
	it.index = n
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil  // avoid memory leak
	it.index = -1   // for safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// AddItem inserts a new item or updates the priority of an existing one.
func (mh *MapHeap) AddItem(key, priority uint64) {
	if it, exists := mh.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(mh, it.index)
		return
	}
	heap.Push(mh, &item{Key: key, Priority: priority})
}

// RemoveByKey removes an item by its key, returning its priority.
func (mh *MapHeap) RemoveByKey(key uint64) (uint64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(mh, it.index)
	return it.Priority, true
}

// PopMin removes and returns the key with the minimum priority.
func (mh *MapHeap) PopMin() (uint64, bool) {
	if len(mh.items) == 0 {
		return 0, false
	}
	it := heap.Pop(mh).(*item)
	return it.Key, true
}

// Contains reports whether key is in the queue.
func (mh *MapHeap) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}
