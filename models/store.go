package models

// ObjectStore is the canonical id to object table. The index facade is its
// sole owner; tree nodes hold ids and resolve them here, so an object
// referenced by several leaves still has a single record.
//
// The store does no locking. The index is single writer and callers that
// share it across goroutines serialize access externally.
type ObjectStore struct {
	objects map[string]*SpatialObject
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects: make(map[string]*SpatialObject),
	}
}

func (s *ObjectStore) Set(o *SpatialObject) {
	s.objects[o.ID] = o
}

func (s *ObjectStore) Get(id string) (*SpatialObject, bool) {
	o, ok := s.objects[id]
	return o, ok
}

func (s *ObjectStore) Delete(id string) bool {
	_, ok := s.objects[id]
	delete(s.objects, id)
	return ok
}

func (s *ObjectStore) Len() int {
	return len(s.objects)
}

func (s *ObjectStore) Clear() {
	s.objects = make(map[string]*SpatialObject)
}

// List returns every stored object in unspecified order.
func (s *ObjectStore) List() []*SpatialObject {
	list := make([]*SpatialObject, 0, len(s.objects))
	for _, o := range s.objects {
		list = append(list, o)
	}
	return list
}
