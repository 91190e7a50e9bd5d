package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/verveo/todo-generator/internal/datetime"
)

// SystemPrompt describes the output record and how Vietnamese time phrases
// map onto concrete windows. It is identical for every request.
const SystemPrompt = `Bạn là trợ lý AI thông minh chuyên tạo todo list. Nhiệm vụ của bạn là tạo ra các todo item chi tiết và hữu ích dựa trên prompt của người dùng.

Hãy tạo todo với các thông tin sau:
- title: Tiêu đề ngắn gọn, rõ ràng
- description: Mô tả chi tiết về công việc cần làm
- startTime: Thời gian bắt đầu (định dạng YYYY-MM-DD HH:MM:SS) - BẮT BUỘC
- endTime: Thời gian kết thúc (định dạng YYYY-MM-DD HH:MM:SS) - BẮT BUỘC
- labels: Danh sách phân loại công việc (ví dụ: Học tập, Công việc, Gia đình, Sức khỏe, Giải trí)
- priority: Độ ưu tiên, một trong high/medium/low
- message: Lời nhắc thân thiện, động viên
- confidence: Độ tin cậy từ 0.0 đến 1.0

QUAN TRỌNG VỀ THỜI GIAN - LUÔN ƯỚC LƯỢNG:
- Dùng thời gian hiện tại được cung cấp để tính toán thời gian chính xác
- "Cuối tuần" = Thứ Bảy hoặc Chủ Nhật
- "Tuần tới" = tuần sau, bắt đầu từ Thứ Hai
- "Ngày mai" = ngày tiếp theo
- "Tối nay" = buổi tối hôm nay (19:00-23:00)
- "Sáng mai" = buổi sáng ngày mai (07:00-11:00)
- "Chiều mai" = buổi chiều ngày mai (13:00-17:00)
- Nếu có thời lượng cụ thể (ví dụ: "2 tiếng"), tính startTime và endTime từ thời gian hiện tại
- Nếu KHÔNG có thời gian cụ thể, ước lượng hợp lý theo loại công việc:
  * Học tập: 1-3 giờ
  * Công việc: 2-8 giờ
  * Gia đình: 1-4 giờ
  * Sức khỏe: 30 phút - 2 giờ
  * Giải trí: 1-3 giờ
  * Mua sắm: 1-2 giờ
- Luôn dùng định dạng YYYY-MM-DD HH:MM:SS
- KHÔNG BAO GIỜ để startTime hoặc endTime = null

Chỉ trả về một đối tượng JSON hợp lệ.`

// BuildUserPrompt embeds the prompt and the wall-clock context of now.
func BuildUserPrompt(prompt string, now time.Time) string {
	var b strings.Builder
	b.WriteString("Dựa trên prompt sau, hãy tạo một todo item chi tiết:\n\n")
	fmt.Fprintf(&b, "Prompt: %q\n\n", prompt)
	b.WriteString("THÔNG TIN THỜI GIAN HIỆN TẠI:\n")
	fmt.Fprintf(&b, "- Ngày giờ hiện tại: %s\n", now.Format(datetime.Layout))
	fmt.Fprintf(&b, "- Thứ trong tuần: %s\n", datetime.WeekdayVi(now))
	fmt.Fprintf(&b, "- Ngày: %d/%d/%d\n", now.Day(), int(now.Month()), now.Year())
	fmt.Fprintf(&b, "- Giờ: %d:%02d\n\n", now.Hour(), now.Minute())
	b.WriteString(`QUAN TRỌNG: Khi tạo "startTime" và "endTime", hãy tính dựa trên:
1. Thời gian hiện tại ở trên
2. Ngữ cảnh của prompt (ví dụ: "tối nay" = 19:00-23:00 hôm nay)
3. Thời lượng cần để hoàn thành công việc (ví dụ: "2 tiếng" = 2 giờ)
4. Nếu có thời gian cụ thể, tính startTime và endTime theo đó
5. Nếu KHÔNG có thời gian cụ thể, ước lượng hợp lý theo loại công việc
6. LUÔN có startTime và endTime, không được để null

Hãy phân tích và tạo todo với thông tin đầy đủ, thực tế và hữu ích.`)
	return b.String()
}
