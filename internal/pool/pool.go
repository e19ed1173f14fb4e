// Package pool типизированная обёртка над sync.Pool, объект сбрасывается при возврате.
package pool

import (
	"reflect"
	"sync"
)

type Resettable interface {
	Reset()
}

type Pool[T Resettable] struct {
	p sync.Pool
}

func New[T Resettable](factory func() T) *Pool[T] {
	pp := &Pool[T]{}
	pp.p.New = func() any { return factory() }
	return pp
}

func (pp *Pool[T]) Get() T {
	return pp.p.Get().(T)
}

// Put nil не возвращается в пул, в том числе типизированный nil-указатель
func (pp *Pool[T]) Put(v T) {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return
	}
	v.Reset()
	pp.p.Put(v)
}
