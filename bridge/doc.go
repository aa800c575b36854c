// Package bridge exposes registered add-in classes to WebAssembly guests
// through a wazero host module named "addin".
//
// The guest plays the host: it creates objects by class name, hands over
// its memory manager and drives properties and methods. Every function
// takes and returns i32 values:
//
//	class_names(out) -> units
//	create(name, len) -> handle      destroy(handle) -> ok
//	init(h) -> ok                    set_mem_manager(h) -> ok
//	get_info(h) -> version           done(h)
//	register_extension_as(h, out) -> ok
//	get_n_props(h)                   find_prop(h, name, len)
//	get_prop_name(h, n, alias)       get_prop_val(h, n, rec)
//	set_prop_val(h, n, rec)          is_prop_readable(h, n)
//	is_prop_writable(h, n)           get_n_methods(h)
//	find_method(h, name, len)        get_method_name(h, n, alias)
//	get_n_params(h, m)               get_param_def_value(h, m, p, rec)
//	has_ret_val(h, m)                call_as_proc(h, m, params, count)
//	call_as_func(h, m, ret, params, count)
//	set_locale(h, name, len)
//
// Names passed in are UTF-16 pointer and unit count. Names passed out are
// zero-terminated UTF-16 buffers allocated with the guest's alloc export
// and owned by the guest.
//
// The guest must export "memory" and "alloc(size) -> ptr" returning 8-byte
// aligned pointers. "free(ptr, size)" and
// "add_error(code, src, srcLen, descr, descrLen, scode) -> ok" are
// optional; without add_error, reports are logged.
package bridge
