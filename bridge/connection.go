package bridge

import (
	"go.uber.org/zap"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// guestConnection forwards AddError to the guest's optional
// add_error(code, src, srcLen, descr, descrLen, scode) -> i32 export.
// Both strings are copied into guest buffers for the duration of the call
// and freed afterwards. Without the export reports go to the log.
type guestConnection struct {
	guest *Guest
	fn    api.Function
}

func newGuestConnection(g *Guest) *guestConnection {
	return &guestConnection{guest: g, fn: g.mod.ExportedFunction(ExportAddError)}
}

func (c *guestConnection) AddError(code uint16, source, descr string, scode int32) bool {
	if c.fn == nil {
		Logger().Warn("add-in error",
			zap.Uint16("code", code),
			zap.String("source", source),
			zap.String("description", descr),
			zap.Int32("scode", scode))
		return true
	}

	// Both strings are freed by Release once the guest has returned.
	st := wire.NewStage(c.guest, c.guest)
	defer st.Release()

	src, err := st.Lower(variant.TextOf(source))
	if err != nil {
		Logger().Warn("add_error: cannot copy source", zap.Error(err))
		return false
	}
	desc, err := st.Lower(variant.TextOf(descr))
	if err != nil {
		Logger().Warn("add_error: cannot copy description", zap.Error(err))
		return false
	}

	results, err := c.fn.Call(c.guest.ctx,
		uint64(code),
		api.EncodeU32(src.Ptr()), uint64(src.Len),
		api.EncodeU32(desc.Ptr()), uint64(desc.Len),
		api.EncodeI32(scode))
	if err != nil {
		Logger().Warn("add_error trapped", zap.Error(err))
		return false
	}
	return len(results) == 0 || api.DecodeI32(results[0]) != 0
}
