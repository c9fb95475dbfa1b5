package table

// Select adds the row to the selection, replacing it when multi-select is disabled.
func (c *Controller[T]) Select(item T) {
	id := c.opts.IDFunc(item)

	c.mutex.Lock()
	if !c.opts.SelectMultiple {
		c.selection = make(map[string]T)
		c.selected = nil
	}
	if _, ok := c.selection[id]; !ok {
		c.selected = append(c.selected, id)
	}
	c.selection[id] = item
	c.mutex.Unlock()

	c.publish()
}

func (c *Controller[T]) Deselect(id string) {
	c.mutex.Lock()
	c.deselect(id)
	c.mutex.Unlock()

	c.publish()
}

func (c *Controller[T]) deselect(id string) {
	if _, ok := c.selection[id]; !ok {
		return
	}
	delete(c.selection, id)
	for i, selected := range c.selected {
		if selected == id {
			c.selected = append(c.selected[:i:i], c.selected[i+1:]...)
			break
		}
	}
}

// Toggle selects an unselected row and deselects a selected one.
func (c *Controller[T]) Toggle(item T) {
	if c.IsSelected(c.opts.IDFunc(item)) {
		c.Deselect(c.opts.IDFunc(item))
		return
	}
	c.Select(item)
}

func (c *Controller[T]) IsSelected(id string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.selection[id]
	return ok
}

// Selected returns the selected rows in selection order. Rows stay selected across page changes.
func (c *Controller[T]) Selected() []T {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	items := make([]T, len(c.selected))
	for i, id := range c.selected {
		items[i] = c.selection[id]
	}
	return items
}

func (c *Controller[T]) ClearSelection() {
	c.mutex.Lock()
	c.selection = make(map[string]T)
	c.selected = nil
	c.mutex.Unlock()

	c.publish()
}
