package framecache

import (
	"container/list"
	"sync"
)

type shard struct {
	mu         sync.RWMutex
	totalBytes uint64
	maxBytes   uint64
	evictList  *list.List
	elems      map[uint64]*list.Element
	onEvict    OnEvict
}

type frameEntry struct {
	seq   uint64
	frame []byte
}

func newShard(maxBytes uint64, onEvict OnEvict) *shard {
	return &shard{
		maxBytes:  maxBytes,
		evictList: list.New(),
		elems:     make(map[uint64]*list.Element),
		onEvict:   onEvict,
	}
}

func (s *shard) get(seq uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elems[seq]
	if !ok {
		return nil, false
	}
	s.evictList.MoveToFront(elem)
	return elem.Value.(*frameEntry).frame, true
}

// add stores a frame, evicting the oldest frames until it fits. It
// reports whether an existing frame was replaced and whether any
// eviction happened.
func (s *shard) add(seq uint64, frame []byte) (replaced, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.totalBytes+uint64(len(frame)) > s.maxBytes {
		if !s.removeOldest() {
			break
		}
		evicted = true
	}

	if elem, ok := s.elems[seq]; ok {
		s.evictList.MoveToFront(elem)
		fe := elem.Value.(*frameEntry)
		s.totalBytes -= uint64(len(fe.frame))
		fe.frame = frame
		s.totalBytes += uint64(len(frame))
		return true, evicted
	}

	elem := s.evictList.PushFront(&frameEntry{seq: seq, frame: frame})
	s.elems[seq] = elem
	s.totalBytes += uint64(len(frame))
	return false, evicted
}

func (s *shard) remove(seq uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.elems[seq]
	if !ok {
		return nil, false
	}
	_, frame := s.removeElement(elem)
	return frame, true
}

func (s *shard) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.elems {
		delete(s.elems, k)
	}
	s.totalBytes = 0
	s.evictList.Init()
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elems)
}

func (s *shard) keys() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]uint64, 0, len(s.elems))
	for k := range s.elems {
		out = append(out, k)
	}
	return out
}

func (s *shard) removeOldest() bool {
	elem := s.evictList.Back()
	if elem == nil {
		return false
	}
	seq, frame := s.removeElement(elem)
	if s.onEvict != nil {
		s.onEvict(seq, frame)
	}
	return true
}

func (s *shard) removeElement(elem *list.Element) (uint64, []byte) {
	s.evictList.Remove(elem)
	fe := elem.Value.(*frameEntry)
	delete(s.elems, fe.seq)
	s.totalBytes -= uint64(len(fe.frame))
	return fe.seq, fe.frame
}
